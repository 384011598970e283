// Package mdadapter renders plugin README files. Front matter is decoded into
// page metadata and {{asset: path}} directives become links to the published
// plugin assets.
package mdadapter

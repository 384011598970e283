package common

import "fmt"

var (
	ErrPluginNotFound     = fmt.Errorf("plugin not found")
	ErrAssetNotFound      = fmt.Errorf("asset not found")
	ErrScanAlreadyStarted = fmt.Errorf("plugin scan has already started")
	ErrNoPluginsFound     = fmt.Errorf("no plugins found")
	ErrCountersDisabled   = fmt.Errorf("counters are disabled")
)

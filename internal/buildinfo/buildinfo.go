package buildinfo

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
}

var (
	hostOnce sync.Once
	hostInfo map[string]string
)

// Host describes the machine a run executed on: platform, CPU model, core
// count and total memory. Probed once; fields that cannot be read are omitted.
func Host() map[string]string {
	hostOnce.Do(func() {
		hostInfo = probeHost()
	})
	out := make(map[string]string, len(hostInfo))
	for k, v := range hostInfo {
		out[k] = v
	}
	return out
}

func probeHost() map[string]string {
	out := map[string]string{
		"goos":     runtime.GOOS,
		"goarch":   runtime.GOARCH,
		"numCPU":   fmt.Sprint(runtime.NumCPU()),
		"maxProcs": fmt.Sprint(runtime.GOMAXPROCS(0)),
	}
	if h, err := host.Info(); err == nil && h != nil {
		out["hostname"] = h.Hostname
		out["platform"] = h.Platform
		out["platformVersion"] = h.PlatformVersion
	}
	if cs, err := cpu.Info(); err == nil && len(cs) > 0 {
		out["cpu"] = cs[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		out["memory"] = fmt.Sprintf("%d GB", vm.Total/1024/1024/1024)
	}
	return out
}

//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"

	"hark/tray"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	mainthread.Init(run)
}

func trayLoop() {
	mainthread.Call(tray.Run)
}

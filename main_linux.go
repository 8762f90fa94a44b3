//go:build linux

package main

import "hark/tray"

func main() {
	run()
}

func trayLoop() {
	tray.Run()
}

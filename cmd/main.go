package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"kiosk-firmware/pkg/actions"
	"kiosk-firmware/pkg/appconfig"
	"kiosk-firmware/pkg/buttons"
	"kiosk-firmware/pkg/display"
	"kiosk-firmware/pkg/globals"
	"kiosk-firmware/pkg/hdmi"
	"kiosk-firmware/pkg/logger"
	"kiosk-firmware/pkg/statusd"
	"kiosk-firmware/pkg/updater"
	"kiosk-firmware/pkg/usbmedia"
)

func main() {
	// Initialize logger first to capture all logs
	logger.Init()

	log.Printf("Starting kiosk firmware %s", globals.FirmwareVersion)

	if err := appconfig.Init(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	display.Init()
	hdmi.Init()
	statusd.Init()
	updater.Init(usbmedia.New(), display.Get(), statusd.Get())
	actions.Init()

	if err := buttons.Init(appconfig.Get().Current(), actions.Get()); err != nil {
		log.Fatalf("Failed to initialize buttons: %v", err)
	}

	statusd.Get().Start()
	buttons.Get().Start()
	actions.Get().ShowDefault()

	// Wait for interrupt signal, keep everything alive until then
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down")
	updater.Get().Stop()
	buttons.Get().Stop()
	statusd.Get().Stop()
	actions.Get().StopCurrent()
}

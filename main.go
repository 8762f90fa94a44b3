package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"hark/audio"
	"hark/beep"
	"hark/clipboard"
	"hark/config"
	"hark/doctor"
	"hark/encoder"
	"hark/history"
	"hark/keymon"
	"hark/log"
	"hark/ptt"
	"hark/recorder"
	"hark/shortcuts"
	"hark/shutdown"
	"hark/transcriber"
	"hark/tray"
	"hark/update"
	"hark/web"
)

var version = "dev"

var shutdownOnce sync.Once

func run() {
	configFlag := flag.String("config", "", "config file path (default: OS config dir)")
	tuiFlag := flag.Bool("tui", false, "run with the terminal HUD")
	noTrayFlag := flag.Bool("notray", false, "disable the menu bar icon")
	doctorFlag := flag.Bool("doctor", false, "run system diagnostics and exit")
	testFlag := flag.Bool("test", false, "headless scripted mode, commands on stdin")
	versionFlag := flag.Bool("version", false, "print version and exit")
	updateFlag := flag.Bool("update", false, "check for a newer release, install it and exit")
	autoPasteFlag := flag.Bool("autopaste", true, "auto-paste to the focused window after transcription")
	setupFlag := flag.Bool("setup", false, "select microphone device interactively")
	deviceFlag := flag.String("device", "", "use named microphone device")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location)")
	profileFlag := flag.String("profile", "", "pprof listen address (e.g. localhost:6060)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("hark %s\n", version)
		os.Exit(0)
	}

	if *updateFlag {
		os.Exit(runUpdate())
	}

	logDir, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *doctorFlag {
		os.Exit(doctor.Run(*configFlag))
	}

	configPath := *configFlag
	if configPath == "" {
		configPath, err = config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if *testFlag {
		runTestMode(cfg)
		return
	}

	trans, err := transcriber.New(cfg.Transcription.Provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if w, ok := trans.(interface{ Warm() }); ok {
		go w.Warm()
	}

	var enh transcriber.Enhancer
	if e, err := transcriber.NewEnhancer(cfg.Transcription.Provider); err != nil {
		log.Warnf("enhancement unavailable: %v", err)
	} else {
		enh = e
	}

	if *autoPasteFlag {
		if err := clipboard.Init(); err != nil {
			log.Warnf("paste init failed: %v", err)
			fmt.Printf("Warning: paste init failed: %v\n", err)
			if runtime.GOOS == "linux" {
				fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
			}
		}
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}

	selected := resolveDevice(actx, cfg, *deviceFlag, *setupFlag)
	captureConfig := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}
	capture, err := actx.NewCapture(selected, captureConfig)
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		os.Exit(1)
	}

	fan := &statusFan{}

	// The dashboard reads takes from the store, so enabling it opens
	// the store even when history alone is switched off.
	var store *history.Store
	if cfg.History.Enabled || cfg.Web.Enabled {
		if path, perr := cfg.HistoryPath(); perr != nil {
			log.Errorf("history disabled: %v", perr)
		} else if store, err = history.Open(path); err != nil {
			log.Errorf("history disabled: %v", err)
			store = nil
		} else {
			fan.store = store
		}
	}

	var webSrv *web.Server
	if cfg.Web.Enabled && store != nil {
		webSrv = web.New(store, fan.webStatus)
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Web.Port)
		if err := webSrv.Start(addr); err != nil {
			log.Errorf("dashboard failed to start: %v", err)
			webSrv = nil
		} else {
			fan.web = webSrv
		}
	}

	rec := recorder.New(fan, trans, recorder.Options{
		Format:     cfg.Audio.Format,
		Language:   cfg.Transcription.Language,
		MaxSeconds: cfg.Audio.MaxSeconds,
		AutoPaste:  *autoPasteFlag,
	})
	fan.bind(rec)
	if enh != nil {
		rec.SetEnhancer(enh)
	}
	if cfg.Transcription.Prompt > 0 {
		rec.SetStyle(cfg.Transcription.Prompt)
	}
	if cfg.Transcription.Enhance && !rec.Enhancing() {
		rec.ToggleEnhance()
	}
	deviceName := "system default"
	if selected != nil {
		deviceName = selected.Name
	}
	if err := rec.Use(capture, deviceName); err != nil {
		log.Errorf("capture attach: %v", err)
	}

	opts, err := cfg.Hotkey.Options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	toggleBinding, err := cfg.Hotkey.ToggleBinding()
	if err != nil {
		log.Warnf("toggle shortcut: %v", err)
	}

	eng := ptt.New(rec, opts)
	rec.SetHandsFreeProbe(eng.HandsFree)
	rec.OnAutoStop(eng.Reset)
	eng.Start()
	rec.Start()

	wiring := &inputWiring{eng: eng}
	if err := wiring.start(opts.Binding, toggleBinding); err != nil {
		log.Errorf("input monitor: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var reg *shortcuts.Registrar
	if cfg.Shortcuts.Escape || cfg.Shortcuts.Enhance != "" || cfg.Shortcuts.Prompts {
		reg = shortcuts.NewRegistrar(shortcuts.NewBinder(), takeActions{
			rec:     rec,
			fan:     fan,
			escape:  cfg.Shortcuts.Escape,
			enhance: cfg.Shortcuts.Enhance != "",
			prompts: cfg.Shortcuts.Prompts,
		})
		go reg.Run(rec.Visible())
	}

	watcher, err := config.Watch(configPath, func(next *config.Config) {
		applyConfig(next, eng, rec, wiring, fan, *autoPasteFlag)
	})
	if err != nil {
		log.Warnf("config watch: %v", err)
		watcher = nil
	}

	shutdownApp := func() {
		shutdownOnce.Do(func() {
			log.Info("shutting down")
			if watcher != nil {
				watcher.Close()
			}
			wiring.stopAll()
			if reg != nil {
				reg.Stop()
			}
			eng.Stop()
			rec.Stop()
			select {
			case <-rec.Done():
			case <-time.After(5 * time.Second):
				log.Warn("shutdown: transcription still in flight, abandoning")
			}
			if webSrv != nil {
				webSrv.Close()
			}
			if store != nil {
				store.Close()
			}
			actx.Close()
			tray.Quit()
			tuiMu.Lock()
			p := tuiProgram
			tuiMu.Unlock()
			if p != nil {
				p.Quit()
			}
			log.Close()
			os.Exit(0)
		})
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-tray.QuitCh():
		}
		shutdownApp()
	}()

	update.StartBackgroundCheck(version, log.Dir(), func(rel update.Release) {
		log.Infof("update available: %s", rel.Version)
		sendTUI(UpdateAvailableMsg{Version: rel.Version})
		tray.SetUpdateAvailable(rel.Version)
	})

	go beep.Init()

	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(opts.Binding.String(), cfg.Hotkey.Toggle)
		p := tuiProgram
		tuiMu.Unlock()
		go func() {
			if _, err := p.Run(); err != nil {
				log.Errorf("HUD error: %v", err)
			}
			shutdownApp()
		}()
		sendTUI(ModeLineMsg{Text: modeLine(trans, cfg)})
		sendTUI(DeviceLineMsg{Text: deviceName})
		sendTUI(EnhanceMsg{On: rec.Enhancing(), Style: rec.Style()})
	}

	log.Infof("hark %s ready: combo %s, provider %s", version, opts.Binding, trans.Name())

	if *noTrayFlag {
		select {}
	}

	wireTray(cfg, eng, rec, fan, actx, captureConfig, selected, webSrv, *autoPasteFlag)
	go watchDevices(actx, captureConfig, rec, selected)
	trayLoop()
	// The menu loop returned, so the user quit from the tray.
	shutdownApp()
}

// runUpdate is the -update path: check, confirm, swap the binary.
func runUpdate() int {
	if version == "dev" {
		fmt.Println("Dev build, cannot check for updates.")
		return 0
	}
	fmt.Printf("hark %s, checking for updates...\n", version)
	rel, err := update.CheckLatest(version)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	if rel == nil {
		fmt.Println("Already up to date.")
		return 0
	}
	fmt.Printf("Update available: %s -> %s\n", version, rel.Version)
	fmt.Print("Continue? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		fmt.Println("Aborted.")
		return 0
	}
	fmt.Printf("Downloading %s...\n", rel.Version)
	if err := update.Apply(rel); err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	fmt.Printf("Updated to %s\n", rel.Version)
	return 0
}

// resolveDevice picks the capture device: the -device flag wins, then
// the interactive picker, then the config preference. Nil means the
// system default.
func resolveDevice(actx audio.Context, cfg *config.Config, flagName string, setup bool) *audio.DeviceInfo {
	if flagName != "" {
		if devices, err := actx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == flagName {
					return &devices[i]
				}
			}
		}
		log.Warnf("device %q not found, using default", flagName)
		return nil
	}
	if setup {
		dev, err := audio.SelectDevice(actx, cfg.Audio.Device)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			return nil
		}
		return dev
	}
	if cfg.Audio.Device != "" {
		if devices, err := actx.Devices(); err == nil {
			if dev := audio.ByName(devices, cfg.Audio.Device); dev != nil {
				return dev
			}
			log.Warnf("configured device %q not found, using default", cfg.Audio.Device)
		}
	}
	return nil
}

func modeLine(trans transcriber.Transcriber, cfg *config.Config) string {
	label := trans.Name()
	if cfg.Transcription.Language != "" {
		label += " (" + cfg.Transcription.Language + ")"
	}
	return label + " | " + cfg.Audio.Format
}

// applyConfig pushes a reloaded file into the running pieces. The
// engine abandons any in-flight press, and a take left open without a
// stop on the way is canceled rather than left to the duration cap.
func applyConfig(cfg *config.Config, eng *ptt.Engine, rec *recorder.Recorder, wiring *inputWiring, fan *statusFan, autoPaste bool) {
	opts, err := cfg.Hotkey.Options()
	if err != nil {
		log.Errorf("config reload: %v", err)
		return
	}
	toggleBinding, err := cfg.Hotkey.ToggleBinding()
	if err != nil {
		log.Warnf("config reload: toggle shortcut: %v", err)
	}

	eng.Reconfigure(opts)
	if rec.Recording() {
		rec.Cancel()
	}
	wiring.rebind(opts.Binding, toggleBinding)

	rec.SetOptions(recorder.Options{
		Format:     cfg.Audio.Format,
		Language:   cfg.Transcription.Language,
		MaxSeconds: cfg.Audio.MaxSeconds,
		AutoPaste:  autoPaste,
	})
	if rec.Enhancing() != cfg.Transcription.Enhance {
		rec.ToggleEnhance()
	}
	if cfg.Transcription.Prompt > 0 {
		rec.SetStyle(cfg.Transcription.Prompt)
	}
	fan.enhanceChanged()
	log.Infof("config reloaded: combo %s", opts.Binding)
}

// inputWiring owns the key monitors. Raw-device platforms deliver
// every key regardless of the binding, but global-hotkey platforms
// register the concrete combination, so a reload that changes a
// binding tears the monitor down and builds a fresh one. Rebind
// starts replacements on their own goroutine: hotkey registration
// waits for the main thread, and the menu loop may be holding it.
type inputWiring struct {
	eng *ptt.Engine

	mu     sync.Mutex
	combo  ptt.Binding
	toggle ptt.Binding
	mon    keymon.Monitor
	tmon   keymon.Monitor
}

func (w *inputWiring) start(combo, toggle ptt.Binding) error {
	mon := keymon.New(combo, w.eng.Deliver)
	if err := mon.Start(); err != nil {
		return err
	}
	w.mu.Lock()
	w.mon = mon
	w.combo = combo
	w.mu.Unlock()

	if !toggle.Zero() {
		tmon := keymon.New(toggle, w.toggleDeliver(toggle))
		if err := tmon.Start(); err != nil {
			log.Warnf("toggle shortcut unavailable: %v", err)
		} else {
			w.mu.Lock()
			w.tmon = tmon
			w.toggle = toggle
			w.mu.Unlock()
		}
	}
	return nil
}

// toggleDeliver turns the raw key stream for the toggle combo into
// engine triggers, one per press edge. Several device readers can
// call in at once.
func (w *inputWiring) toggleDeliver(toggle ptt.Binding) keymon.Deliver {
	var mu sync.Mutex
	edge := ptt.NewComboEdge(toggle)
	return func(ev ptt.KeyEvent) {
		mu.Lock()
		hit := edge.Feed(ev)
		mu.Unlock()
		if hit {
			w.eng.Trigger(ev.At)
		}
	}
}

func (w *inputWiring) rebind(combo, toggle ptt.Binding) {
	w.mu.Lock()
	oldMon, comboChanged := w.mon, combo != w.combo
	oldTmon, toggleChanged := w.tmon, toggle != w.toggle
	if comboChanged {
		w.mon = nil
		w.combo = combo
	}
	if toggleChanged {
		w.tmon = nil
		w.toggle = toggle
	}
	w.mu.Unlock()

	if comboChanged {
		if oldMon != nil {
			oldMon.Stop()
		}
		go func() {
			mon := keymon.New(combo, w.eng.Deliver)
			if err := mon.Start(); err != nil {
				log.Errorf("rebinding %s: %v", combo, err)
				return
			}
			w.mu.Lock()
			if w.combo != combo {
				// Another reload won the race.
				w.mu.Unlock()
				mon.Stop()
				return
			}
			w.mon = mon
			w.mu.Unlock()
			log.Infof("hotkey rebound: %s", combo)
		}()
	}

	if toggleChanged {
		if oldTmon != nil {
			oldTmon.Stop()
		}
		if toggle.Zero() {
			return
		}
		go func() {
			tmon := keymon.New(toggle, w.toggleDeliver(toggle))
			if err := tmon.Start(); err != nil {
				log.Warnf("toggle shortcut unavailable: %v", err)
				return
			}
			w.mu.Lock()
			if w.toggle != toggle {
				w.mu.Unlock()
				tmon.Stop()
				return
			}
			w.tmon = tmon
			w.mu.Unlock()
		}()
	}
}

func (w *inputWiring) stopAll() {
	w.mu.Lock()
	mon, tmon := w.mon, w.tmon
	w.mon, w.tmon = nil, nil
	w.mu.Unlock()
	if mon != nil {
		mon.Stop()
	}
	if tmon != nil {
		tmon.Stop()
	}
}

// wireTray hooks the menu callbacks up before the loop starts. The
// callbacks all run on the menu goroutine, so the little language and
// paste state they share needs no lock.
func wireTray(cfg *config.Config, eng *ptt.Engine, rec *recorder.Recorder, fan *statusFan, actx audio.Context, captureConfig audio.CaptureConfig, selected *audio.DeviceInfo, webSrv *web.Server, autoPaste bool) {
	lang := cfg.Transcription.Language
	paste := autoPaste
	rebuild := func() {
		rec.SetOptions(recorder.Options{
			Format:     cfg.Audio.Format,
			Language:   lang,
			MaxSeconds: cfg.Audio.MaxSeconds,
			AutoPaste:  paste,
		})
	}

	tray.OnCopyLast(fan.copyLast)
	toggle := func() { eng.Trigger(time.Now()) }
	tray.OnRecord(toggle, toggle)
	tray.OnEnable(func(on bool) {
		opts, err := cfg.Hotkey.Options()
		if err != nil {
			return
		}
		opts.Enabled = on
		eng.Reconfigure(opts)
		if !on && rec.Recording() {
			rec.Cancel()
		}
		if on {
			log.Info("push-to-talk enabled from tray")
		} else {
			log.Info("push-to-talk disabled from tray")
		}
	})
	tray.SetAutoPaste(autoPaste)
	tray.OnAutoPaste(func(on bool) {
		paste = on
		rebuild()
	})
	tray.SetEnhance(rec.Enhancing())
	tray.OnEnhance(func(on bool) {
		if rec.Enhancing() != on {
			rec.ToggleEnhance()
		}
		fan.enhanceChanged()
	})
	tray.SetBTCheck(audio.IsBluetooth)
	tray.SetLanguage(lang, func(code string) {
		lang = code
		rebuild()
		sendTUI(ModeLineMsg{Text: fmt.Sprintf("%s | %s", code, cfg.Audio.Format)})
	})
	if webSrv != nil {
		tray.SetDashboardURL(webSrv.URL())
	}

	selectedName := ""
	if selected != nil {
		selectedName = selected.Name
	}
	if devices, err := actx.Devices(); err == nil && len(devices) > 0 {
		names := make([]string, len(devices))
		for i := range devices {
			names[i] = devices[i].Name
		}
		tray.SetDevices(names, selectedName, func(name string) {
			switchDevice(actx, captureConfig, rec, name)
		})
	}
}

func switchDevice(actx audio.Context, captureConfig audio.CaptureConfig, rec *recorder.Recorder, name string) {
	devices, err := actx.Devices()
	if err != nil {
		log.Warnf("device enumeration failed: %v", err)
		return
	}
	var target *audio.DeviceInfo
	for i := range devices {
		if devices[i].Name == name {
			target = &devices[i]
			break
		}
	}
	if target == nil && name != "" {
		log.Warnf("device not found: %s", name)
		return
	}
	applyDevice(actx, captureConfig, rec, target)
}

func applyDevice(actx audio.Context, captureConfig audio.CaptureConfig, rec *recorder.Recorder, dev *audio.DeviceInfo) {
	name := "system default"
	if dev != nil {
		name = dev.Name
	}
	capture, err := actx.NewCapture(dev, captureConfig)
	if err != nil {
		log.Errorf("capture device reinit error: %v", err)
		return
	}
	if err := rec.Use(capture, name); err != nil {
		// Mid-take the swap is refused; the hotplug poll retries.
		capture.Close()
		log.Warnf("device switch deferred: %v", err)
		return
	}
	log.Infof("device switch: %s", name)
	sendTUI(DeviceLineMsg{Text: name})
}

// watchDevices polls for hotplug. A vanished selection falls back to
// the system default, and the preferred device reconnects when it
// shows up again.
func watchDevices(actx audio.Context, captureConfig audio.CaptureConfig, rec *recorder.Recorder, selected *audio.DeviceInfo) {
	preferred := ""
	if selected != nil {
		preferred = selected.Name
	}

	var last []string
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		devices, err := actx.Devices()
		if err != nil {
			continue
		}
		names := make([]string, len(devices))
		for i := range devices {
			names[i] = devices[i].Name
		}
		if slices.Equal(last, names) {
			continue
		}
		last = names

		current := rec.DeviceName()
		if current != "system default" && !slices.Contains(names, current) {
			log.Infof("device disconnected: %s", current)
			applyDevice(actx, captureConfig, rec, nil)
			current = "system default"
		}
		if current == "system default" && preferred != "" && slices.Contains(names, preferred) {
			log.Infof("device reconnected: %s", preferred)
			switchDevice(actx, captureConfig, rec, preferred)
			current = preferred
		}
		sel := ""
		if current != "system default" {
			sel = current
		}
		tray.RefreshDevices(names, sel)
	}
}

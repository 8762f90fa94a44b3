// Package tray puts hark in the system tray: a recording indicator
// icon plus a menu for the switches that do not deserve a config-file
// edit. Run must be called from the main goroutine and blocks until
// the user quits.
package tray

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"hark/log"
)

type Language struct {
	Code  string // ISO-639-1
	Label string
}

// Languages accepted by the whisper family of models.
var Languages = []Language{
	{"", "Auto-detect"},
	{"bg", "Bulgarian"},
	{"ca", "Catalan"},
	{"zh", "Chinese"},
	{"cs", "Czech"},
	{"da", "Danish"},
	{"nl", "Dutch"},
	{"en", "English"},
	{"et", "Estonian"},
	{"fi", "Finnish"},
	{"fr", "French"},
	{"de", "German"},
	{"el", "Greek"},
	{"hi", "Hindi"},
	{"hu", "Hungarian"},
	{"id", "Indonesian"},
	{"it", "Italian"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"lv", "Latvian"},
	{"lt", "Lithuanian"},
	{"ms", "Malay"},
	{"no", "Norwegian"},
	{"pl", "Polish"},
	{"pt", "Portuguese"},
	{"ro", "Romanian"},
	{"ru", "Russian"},
	{"sk", "Slovak"},
	{"es", "Spanish"},
	{"sv", "Swedish"},
	{"th", "Thai"},
	{"tr", "Turkish"},
	{"uk", "Ukrainian"},
	{"vi", "Vietnamese"},
}

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once
	ready     chan struct{}

	copyLastFn func()
	recordFn   func()
	stopFn     func()
	enableCb   func(bool)

	recording bool
	warning   bool

	deviceMu    sync.Mutex
	deviceNames []string
	deviceSel   string
	deviceCb    func(string)
	deviceItems []*systray.MenuItem

	autoPasteOn bool
	autoPasteCb func(bool)

	enhanceOn bool
	enhanceCb func(bool)

	isBTFn func(string) bool

	langCode string // "" = auto-detect
	langCb   func(string)

	dashURL string

	updateMu  sync.Mutex
	updateVer string

	mRecord  *systray.MenuItem
	mCopy    *systray.MenuItem
	mDevices *systray.MenuItem
	mEnhance *systray.MenuItem
	mEnable  *systray.MenuItem
	mUpdate  *systray.MenuItem
)

// Wiring hooks. Call before Run; the menu reads them at build time.

func OnCopyLast(fn func())        { copyLastFn = fn }
func OnRecord(start, stop func()) { recordFn = start; stopFn = stop }
func OnEnable(fn func(bool))      { enableCb = fn }
func SetAutoPaste(on bool)        { autoPasteOn = on }
func OnAutoPaste(fn func(bool))   { autoPasteCb = fn }
func OnEnhance(fn func(bool))     { enhanceCb = fn }
func SetBTCheck(fn func(string) bool) {
	isBTFn = fn
}

func SetLanguage(code string, onSwitch func(string)) {
	langCode = code
	langCb = onSwitch
}

func SetDevices(names []string, selected string, onSwitch func(string)) {
	deviceMu.Lock()
	deviceNames = names
	deviceSel = selected
	if onSwitch != nil {
		deviceCb = onSwitch
	}
	deviceMu.Unlock()
}

// SetDashboardURL adds an "Open Dashboard" entry pointing at the web
// server. No entry appears when the URL stays empty.
func SetDashboardURL(url string) {
	dashURL = url
}

// Run starts the tray loop on the calling goroutine and blocks until
// Quit. On macOS this must be the main goroutine.
func Run() {
	ready = make(chan struct{})
	systray.Run(onReady, onExit)
}

// QuitCh is closed when the user quits from the menu or Quit is
// called.
func QuitCh() <-chan struct{} {
	return quitCh
}

func Quit() {
	closeOnce.Do(func() { close(quitCh) })
	systray.Quit()
}

// State updates from the recorder fanout. Safe before Run; they fall
// back to remembering the state for menu build time.

func SetRecording(rec bool) {
	recording = rec
	warning = false
	if mRecord == nil {
		return
	}
	if rec {
		systray.SetIcon(iconRecHi)
		mRecord.SetTitle("Stop Recording")
		mDevices.Disable()
	} else {
		systray.SetTemplateIcon(iconIdleHi, iconIdle)
		mRecord.SetTitle("Start Recording")
		mDevices.Enable()
	}
}

func SetWarning(on bool) {
	if !recording || mRecord == nil {
		return
	}
	warning = on
	if on {
		systray.SetIcon(iconWarnHi)
	} else {
		systray.SetIcon(iconRecHi)
	}
}

func SetError(msg string) {
	if ready == nil {
		return
	}
	systray.SetTooltip("hark – " + msg)
	go func() {
		time.Sleep(10 * time.Second)
		systray.SetTooltip("hark – push to talk")
	}()
}

// SetLastTake arms the copy-last entry with the take's numbers.
func SetLastTake(dur time.Duration, totalMs float64) {
	if mCopy == nil {
		return
	}
	mCopy.SetTitle(fmt.Sprintf("Copy Last Take (%.1fs | %dms)", dur.Seconds(), int(totalMs)))
	mCopy.Enable()
}

// SetUpdateAvailable surfaces a newer release in the menu. Clicking
// the entry opens the release page.
func SetUpdateAvailable(version string) {
	updateMu.Lock()
	updateVer = version
	item := mUpdate
	updateMu.Unlock()
	if item == nil {
		return
	}
	item.SetTitle("⚠ Update available: " + version)
	item.Show()
}

// SetEnhance reflects an enhancement flip that came from elsewhere
// (the in-take shortcut) back into the menu checkbox.
func SetEnhance(on bool) {
	enhanceOn = on
	if mEnhance == nil {
		return
	}
	if on {
		mEnhance.Check()
	} else {
		mEnhance.Uncheck()
	}
}

func deviceDisplayName(name string) string {
	if isBTFn != nil && isBTFn(name) {
		return name + " [⚠ Lower audio quality]"
	}
	return name
}

func watchClicks(item *systray.MenuItem, fn func()) {
	go func() {
		for range item.ClickedCh {
			fn()
		}
	}()
}

func addDeviceItem(idx int, name string, checked bool) *systray.MenuItem {
	label := deviceDisplayName(name)
	item := mDevices.AddSubMenuItemCheckbox(label, name, checked)
	watchClicks(item, func() {
		deviceMu.Lock()
		// Read the current name by index, not the captured one;
		// RefreshDevices may have retitled the slot.
		currentName := ""
		if idx < len(deviceNames) {
			currentName = deviceNames[idx]
		}
		cb := deviceCb
		deviceMu.Unlock()
		if cb != nil && currentName != "" {
			cb(currentName)
		}
		deviceMu.Lock()
		for _, it := range deviceItems {
			it.Uncheck()
		}
		if idx < len(deviceItems) {
			deviceItems[idx].Check()
		}
		deviceMu.Unlock()
	})
	return item
}

// RefreshDevices retitles the device submenu after a hotplug scan.
// Existing slots are reused so their click watchers stay valid.
func RefreshDevices(names []string, selected string) {
	if ready == nil {
		return
	}
	<-ready

	deviceMu.Lock()
	defer deviceMu.Unlock()

	deviceNames = names
	deviceSel = selected

	for i, item := range deviceItems {
		if i < len(names) {
			item.SetTitle(deviceDisplayName(names[i]))
			item.SetTooltip(names[i])
			item.Show()
			if names[i] == selected {
				item.Check()
			} else {
				item.Uncheck()
			}
		} else {
			item.Hide()
			item.Uncheck()
		}
	}

	for i := len(deviceItems); i < len(names); i++ {
		item := addDeviceItem(i, names[i], names[i] == selected)
		deviceItems = append(deviceItems, item)
	}
}

func onReady() {
	systray.SetTemplateIcon(iconIdleHi, iconIdle)
	systray.SetTooltip("hark – push to talk")

	mCopy = systray.AddMenuItem("Copy Last Take", "Copy last transcription to clipboard")
	mCopy.Disable()
	watchClicks(mCopy, func() {
		if copyLastFn != nil {
			copyLastFn()
		}
	})

	systray.AddSeparator()

	mRecord = systray.AddMenuItem("Start Recording", "Start or stop recording")
	watchClicks(mRecord, func() {
		if recording {
			if stopFn != nil {
				stopFn()
			}
		} else if recordFn != nil {
			recordFn()
		}
	})

	if dashURL != "" {
		mDash := systray.AddMenuItem("Open Dashboard", "Open the hark dashboard")
		watchClicks(mDash, func() { openBrowser(dashURL) })
	}

	mSettings := systray.AddMenuItem("Settings", "Settings")

	mEnable = mSettings.AddSubMenuItemCheckbox("Push-to-talk Enabled", "Enable or disable the global hotkey", true)
	watchClicks(mEnable, func() {
		if mEnable.Checked() {
			mEnable.Uncheck()
		} else {
			mEnable.Check()
		}
		if enableCb != nil {
			enableCb(mEnable.Checked())
		}
	})

	mDevices = mSettings.AddSubMenuItem("Devices", "Select input device")
	deviceMu.Lock()
	deviceItems = make([]*systray.MenuItem, 0, len(deviceNames))
	for i, name := range deviceNames {
		deviceItems = append(deviceItems, addDeviceItem(i, name, name == deviceSel))
	}
	deviceMu.Unlock()

	mAutoPaste := mSettings.AddSubMenuItemCheckbox("Auto-paste", "Paste transcribed text into the focused app", autoPasteOn)
	watchClicks(mAutoPaste, func() {
		if mAutoPaste.Checked() {
			mAutoPaste.Uncheck()
		} else {
			mAutoPaste.Check()
		}
		if autoPasteCb != nil {
			autoPasteCb(mAutoPaste.Checked())
		}
	})

	mEnhance = mSettings.AddSubMenuItemCheckbox("Enhance Transcripts", "Rewrite transcripts with the active style", enhanceOn)
	watchClicks(mEnhance, func() {
		if mEnhance.Checked() {
			mEnhance.Uncheck()
		} else {
			mEnhance.Check()
		}
		if enhanceCb != nil {
			enhanceCb(mEnhance.Checked())
		}
	})

	mLanguage := mSettings.AddSubMenuItem("Language", "Select transcription language")
	langItems := make([]*systray.MenuItem, 0, len(Languages))
	for i, lang := range Languages {
		idx := i
		item := mLanguage.AddSubMenuItemCheckbox(lang.Label, lang.Label, lang.Code == langCode)
		watchClicks(item, func() {
			for j, it := range langItems {
				if j == idx {
					it.Check()
				} else {
					it.Uncheck()
				}
			}
			if langCb != nil {
				langCb(Languages[idx].Code)
			}
		})
		langItems = append(langItems, item)
	}

	systray.AddSeparator()

	updateMu.Lock()
	mUpdate = systray.AddMenuItem("Update available", "Open the release page")
	ver := updateVer
	updateMu.Unlock()
	if ver != "" {
		mUpdate.SetTitle("⚠ Update available: " + ver)
	} else {
		mUpdate.Hide()
	}
	watchClicks(mUpdate, func() {
		updateMu.Lock()
		v := updateVer
		updateMu.Unlock()
		if v != "" {
			openBrowser("https://github.com/sumerc/hark/releases/tag/" + v)
		}
	})

	mQuit := systray.AddMenuItem("Quit", "Quit hark")
	watchClicks(mQuit, func() { Quit() })

	close(ready)
}

func onExit() {
	closeOnce.Do(func() { close(quitCh) })
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warnf("tray: open %s: %v", url, err)
	}
}

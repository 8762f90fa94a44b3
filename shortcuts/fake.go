package shortcuts

import "sync"

// FakeBinder stands in for the platform key grab in tests and the
// headless harness.
type FakeBinder struct {
	mu       sync.Mutex
	fire     func(Event)
	binds    int
	releases int
	failNext error
}

// FailNext makes the next Bind call return err.
func (f *FakeBinder) FailNext(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

func (f *FakeBinder) Bind(fire func(Event)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.binds++
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.fire = fire
	return nil
}

func (f *FakeBinder) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	f.fire = nil
}

// Press fires a shortcut if the set is currently bound. Reports
// whether anything was listening.
func (f *FakeBinder) Press(ev Event) bool {
	f.mu.Lock()
	fire := f.fire
	f.mu.Unlock()
	if fire == nil {
		return false
	}
	fire(ev)
	return true
}

func (f *FakeBinder) Bound() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fire != nil
}

func (f *FakeBinder) Binds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.binds
}

func (f *FakeBinder) Releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

package gba

// Timer control bits
const (
	timerCountUp = 1 << 2
	timerIRQ     = 1 << 6
	timerEnable  = 1 << 7
)

var timerPrescale = [4]int{1, 64, 256, 1024}

type timer struct {
	reload  uint16
	counter uint16
	control uint16
	ticks   int
}

type timers struct {
	t   [4]timer
	irq *interrupts
}

func (ts *timers) setControl(i int, v uint16) {
	t := &ts.t[i]
	wasOn := t.control&timerEnable != 0
	t.control = v & 0xC7
	if !wasOn && t.control&timerEnable != 0 {
		t.counter = t.reload
		t.ticks = 0
	}
}

func (ts *timers) active() bool {
	return (ts.t[0].control|ts.t[1].control|ts.t[2].control|ts.t[3].control)&timerEnable != 0
}

func (ts *timers) tick(cycles int) {
	for i := range ts.t {
		t := &ts.t[i]
		if t.control&timerEnable == 0 {
			continue
		}
		if i > 0 && t.control&timerCountUp != 0 {
			continue
		}
		t.ticks += cycles
		p := timerPrescale[t.control&3]
		for t.ticks >= p {
			t.ticks -= p
			ts.increment(i)
		}
	}
}

func (ts *timers) increment(i int) {
	t := &ts.t[i]
	t.counter++
	if t.counter != 0 {
		return
	}
	t.counter = t.reload
	if t.control&timerIRQ != 0 {
		ts.irq.request(irqTimer0 + i)
	}
	if i < 3 {
		next := ts.t[i+1].control
		if next&timerEnable != 0 && next&timerCountUp != 0 {
			ts.increment(i + 1)
		}
	}
}

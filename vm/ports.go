package vm

import "sort"

// Reserved port numbers (section 6 of the port conventions): 0/1/2 are SPI-like
// (SCLK, MOSI, MISO), 3 is the character output port used by the
// hello-world family of examples. Everything else is unreserved but legal.
const (
	PortSCLK    = 0
	PortMOSI    = 1
	PortMISO    = 2
	PortConsole = 3
)

// InputEvent is one byte becoming available on a port at a given tick, the
// timestamped form of driver-supplied input described in section 6.
type InputEvent struct {
	Port int32
	Byte byte
	Tick int
}

// port is a single numbered I/O endpoint: independent input and output byte
// queues plus an interrupt-request line the driver asserts when new input
// arrives. The simulator is single-threaded (section 5), so these are plain FIFOs,
// not channels - there is no concurrent producer to guard against.
type port struct {
	in  []byte
	out []byte
	irq bool
}

// portTable is the full set of ports touched by a run, keyed by port
// number. Ports are created lazily; an untouched port behaves as empty.
type portTable struct {
	ports map[int32]*port
}

func newPortTable() *portTable {
	return &portTable{ports: make(map[int32]*port)}
}

func (pt *portTable) get(p int32) *port {
	entry, ok := pt.ports[p]
	if !ok {
		entry = &port{}
		pt.ports[p] = entry
	}
	return entry
}

// scheduleInputs sorts input events by tick so Run can pour them into their
// ports in order as soon as the current tick reaches or passes each one -
// robust to a tick counter that advances in multi-tick jumps and so never
// lands exactly on an event's scheduled tick.
func scheduleInputs(events []InputEvent) []InputEvent {
	sorted := append([]InputEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })
	return sorted
}

func (pt *portTable) deliver(events []InputEvent) {
	for _, ev := range events {
		p := pt.get(ev.Port)
		p.in = append(p.in, ev.Byte)
		p.irq = true
	}
}

// outputs collects every port's accumulated output queue, the shape Run
// returns to the driver.
func (pt *portTable) outputs() map[int32][]byte {
	out := make(map[int32][]byte, len(pt.ports))
	for num, p := range pt.ports {
		if len(p.out) > 0 {
			out[num] = append([]byte(nil), p.out...)
		}
	}
	return out
}

// requestedVectors returns the port numbers currently asserting their IRQ
// line, used by the interrupt controller's lowest-numbered-wins arbitration.
// Port number doubles as vector number here: a port's IRQ maps to the vector
// slot of the same index when that slot is bound.
func (pt *portTable) requestedVectors() []int32 {
	var req []int32
	for num, p := range pt.ports {
		if p.irq {
			req = append(req, num)
		}
	}
	return req
}

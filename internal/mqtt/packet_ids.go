package mqtt

import (
	"errors"
	"sync"
)

// ErrNoPacketID is returned when all 65535 ids are in flight.
var ErrNoPacketID = errors.New("no free packet id")

// PacketIDs hands out 16-bit packet ids in 1..65535. Ids are handed out in
// increasing order, wrap after 65535 and skip ids still in use.
type PacketIDs struct {
	mu    sync.Mutex
	next  uint16
	inUse map[uint16]struct{}
}

// NewPacketIDs returns an allocator starting at 1.
func NewPacketIDs() *PacketIDs {
	return &PacketIDs{next: 1, inUse: make(map[uint16]struct{})}
}

// Acquire reserves the next free id.
func (p *PacketIDs) Acquire() (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for range 65535 {
		id := p.next
		p.next++
		if p.next == 0 {
			p.next = 1
		}
		if _, busy := p.inUse[id]; !busy {
			p.inUse[id] = struct{}{}
			return id, nil
		}
	}
	return 0, ErrNoPacketID
}

// Release frees id. Releasing a free id is a no-op.
func (p *PacketIDs) Release(id uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inUse, id)
}

// InUse returns the number of reserved ids.
func (p *PacketIDs) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}

package collector

import "github.com/Taichi-iskw/yt-rank/internal/model"

// CredentialPool rotates API credentials within one collection run.
// It is not safe for concurrent use; build a fresh pool for every run.
type CredentialPool struct {
	creds     []model.Credential
	remaining []int // -1 means untracked
	exhausted []bool
	order     []string // names in the order they were exhausted
	index     int
}

// NewCredentialPool creates a pool where every credential starts with quotaPerKey
// units. quotaPerKey <= 0 disables quota tracking; credentials are then only
// exhausted when the source rejects them.
func NewCredentialPool(creds []model.Credential, quotaPerKey int) *CredentialPool {
	p := &CredentialPool{
		creds:     append([]model.Credential(nil), creds...),
		remaining: make([]int, len(creds)),
		exhausted: make([]bool, len(creds)),
	}
	for i := range p.remaining {
		if quotaPerKey > 0 {
			p.remaining[i] = quotaPerKey
		} else {
			p.remaining[i] = -1
		}
	}
	return p
}

// Current returns the credential requests are issued with, skipping exhausted ones.
// It reports false once every credential is exhausted.
func (p *CredentialPool) Current() (model.Credential, bool) {
	for p.index < len(p.creds) && p.exhausted[p.index] {
		p.index++
	}
	if p.index >= len(p.creds) {
		return model.Credential{}, false
	}
	return p.creds[p.index], true
}

// Acquire returns the first credential that can afford cost units. Credentials
// whose remaining quota is below cost are marked exhausted on the way.
func (p *CredentialPool) Acquire(cost int) (model.Credential, bool) {
	for {
		cred, ok := p.Current()
		if !ok {
			return model.Credential{}, false
		}
		if p.remaining[p.index] < 0 || p.remaining[p.index] >= cost {
			return cred, true
		}
		p.MarkExhausted()
	}
}

// Consume charges units against the current credential
func (p *CredentialPool) Consume(units int) {
	if _, ok := p.Current(); !ok {
		return
	}
	if p.remaining[p.index] < 0 {
		return
	}
	p.remaining[p.index] = max(p.remaining[p.index]-units, 0)
}

// MarkExhausted retires the current credential for the rest of the run
func (p *CredentialPool) MarkExhausted() {
	if _, ok := p.Current(); !ok {
		return
	}
	p.exhausted[p.index] = true
	p.order = append(p.order, p.creds[p.index].Name)
	p.index++
}

// Remaining is the tracked quota left on the current credential, -1 if untracked
// and 0 when the pool is empty
func (p *CredentialPool) Remaining() int {
	if _, ok := p.Current(); !ok {
		return 0
	}
	return p.remaining[p.index]
}

// Exhausted lists the names of retired credentials in the order they ran out
func (p *CredentialPool) Exhausted() []string {
	return append([]string{}, p.order...)
}

package domain

// Positions maps instrument id to a signed quantity (long > 0, short < 0).
type Positions map[string]int

// Get returns zero for instruments that were never traded.
func (p Positions) Get(instrumentID string) int {
	if p == nil {
		return 0
	}
	return p[instrumentID]
}

// Clone 拷贝一份，避免调用方修改交易所内部状态
func (p Positions) Clone() Positions {
	out := make(Positions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

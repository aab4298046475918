package utils

// EpochSparseMap is a dense-array map from small integer keys to float64
// values with O(1) clear. Clearing bumps an epoch counter instead of zeroing
// the backing arrays, so per-vertex rating scratch can be reused across
// thousands of iterations without allocation.
type EpochSparseMap struct {
	values []float64
	epochs []uint32
	keys   []int
	epoch  uint32
}

func NewEpochSparseMap(capacity int) *EpochSparseMap {
	return &EpochSparseMap{
		values: make([]float64, capacity),
		epochs: make([]uint32, capacity),
		keys:   make([]int, 0, 64),
		epoch:  1,
	}
}

// Resize grows the map to hold keys in [0, capacity).
func (m *EpochSparseMap) Resize(capacity int) {
	if capacity <= len(m.values) {
		return
	}
	values := make([]float64, capacity)
	epochs := make([]uint32, capacity)
	copy(values, m.values)
	copy(epochs, m.epochs)
	m.values = values
	m.epochs = epochs
}

func (m *EpochSparseMap) Add(key int, delta float64) {
	if m.epochs[key] != m.epoch {
		m.epochs[key] = m.epoch
		m.values[key] = 0
		m.keys = append(m.keys, key)
	}
	m.values[key] += delta
}

func (m *EpochSparseMap) Get(key int) float64 {
	if m.epochs[key] != m.epoch {
		return 0
	}
	return m.values[key]
}

func (m *EpochSparseMap) Contains(key int) bool {
	return m.epochs[key] == m.epoch
}

// Keys returns the keys touched since the last Clear. Order is insertion
// order, which matters for deterministic tie-breaking.
func (m *EpochSparseMap) Keys() []int {
	return m.keys
}

func (m *EpochSparseMap) Clear() {
	m.keys = m.keys[:0]
	m.epoch++
	if m.epoch == 0 { // wrapped, must hard reset
		for i := range m.epochs {
			m.epochs[i] = 0
		}
		m.epoch = 1
	}
}

// EpochSparseIntMap is the integer-valued variant, used for pin-count and
// gain scratch where exact integer arithmetic is required.
type EpochSparseIntMap struct {
	values []int64
	epochs []uint32
	keys   []int
	epoch  uint32
}

func NewEpochSparseIntMap(capacity int) *EpochSparseIntMap {
	return &EpochSparseIntMap{
		values: make([]int64, capacity),
		epochs: make([]uint32, capacity),
		keys:   make([]int, 0, 64),
		epoch:  1,
	}
}

func (m *EpochSparseIntMap) Resize(capacity int) {
	if capacity <= len(m.values) {
		return
	}
	values := make([]int64, capacity)
	epochs := make([]uint32, capacity)
	copy(values, m.values)
	copy(epochs, m.epochs)
	m.values = values
	m.epochs = epochs
}

func (m *EpochSparseIntMap) Add(key int, delta int64) {
	if m.epochs[key] != m.epoch {
		m.epochs[key] = m.epoch
		m.values[key] = 0
		m.keys = append(m.keys, key)
	}
	m.values[key] += delta
}

func (m *EpochSparseIntMap) Get(key int) int64 {
	if m.epochs[key] != m.epoch {
		return 0
	}
	return m.values[key]
}

func (m *EpochSparseIntMap) Keys() []int {
	return m.keys
}

func (m *EpochSparseIntMap) Clear() {
	m.keys = m.keys[:0]
	m.epoch++
	if m.epoch == 0 {
		for i := range m.epochs {
			m.epochs[i] = 0
		}
		m.epoch = 1
	}
}

package indicator

import (
	"sort"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/replaylab/replay-trading/internal/logger"
	"github.com/replaylab/replay-trading/internal/types"
)

// Manager owns all configured indicators and one resampler per non-1m
// timeframe. It routes each 1m bar: 1m indicators see it directly, and
// higher-timeframe indicators see only the closed bars their resampler
// emits. Values observed after Update(bar T) are therefore a pure
// function of bars [0..T].
type Manager struct {
	log *logger.Logger

	names        []string
	indicators   map[string]Indicator
	tfIndicators map[types.TimeFrame][]string
	resamplers   []*Resampler
}

// NewManager builds indicators from the spec map. Iteration order is
// name-sorted so construction and routing are deterministic.
func NewManager(specs map[string]Spec, log *logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	m := &Manager{
		log:          log,
		indicators:   make(map[string]Indicator, len(specs)),
		tfIndicators: make(map[types.TimeFrame][]string),
	}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}

	sort.Strings(names)

	seenTF := make(map[types.TimeFrame]bool)

	for _, name := range names {
		spec := specs[name]

		ind, err := New(name, spec)
		if err != nil {
			return nil, err
		}

		tf := spec.timeFrame()

		m.names = append(m.names, name)
		m.indicators[name] = ind
		m.tfIndicators[tf] = append(m.tfIndicators[tf], name)

		if tf != types.TimeFrame1m && !seenTF[tf] {
			seenTF[tf] = true

			resampler, err := NewResampler(tf)
			if err != nil {
				return nil, err
			}

			m.resamplers = append(m.resamplers, resampler)
		}
	}

	sort.Slice(m.resamplers, func(i, j int) bool {
		return m.resamplers[i].TimeFrame() < m.resamplers[j].TimeFrame()
	})

	m.log.Debug("indicator manager built",
		zap.Int("indicators", len(m.indicators)),
		zap.Int("resamplers", len(m.resamplers)),
	)

	return m, nil
}

// Update routes one 1m bar. Indicators on 1m update directly; each
// resampler that closes a bucket forwards the closed bar to its
// timeframe's indicators.
func (m *Manager) Update(bar types.Bar) error {
	for _, name := range m.tfIndicators[types.TimeFrame1m] {
		m.indicators[name].Update(bar)
	}

	for _, resampler := range m.resamplers {
		closed, err := resampler.Push(bar)
		if err != nil {
			return err
		}

		if closed.IsNone() {
			continue
		}

		closedBar := closed.Unwrap()
		for _, name := range m.tfIndicators[resampler.TimeFrame()] {
			m.indicators[name].Update(closedBar)
		}
	}

	return nil
}

// Values returns the current value of every ready indicator. Indicators
// still warming up are absent from the map.
func (m *Manager) Values() map[string]types.IndicatorValue {
	out := make(map[string]types.IndicatorValue, len(m.names))

	for _, name := range m.names {
		if v := m.indicators[name].Value(); v.IsSome() {
			out[name] = v.Unwrap()
		}
	}

	return out
}

// Get returns one indicator's current value.
func (m *Manager) Get(name string) optional.Option[types.IndicatorValue] {
	ind, ok := m.indicators[name]
	if !ok {
		return optional.None[types.IndicatorValue]()
	}

	return ind.Value()
}

// Names returns the configured indicator names in deterministic order.
func (m *Manager) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)

	return out
}

// Reset clears all indicator and resampler state.
func (m *Manager) Reset() {
	for _, name := range m.names {
		m.indicators[name].Reset()
	}

	for _, resampler := range m.resamplers {
		resampler.Reset()
	}
}

package microscope

import (
	"fmt"
	"time"

	"stedalign/internal/models"
	"stedalign/pkg/config"
	"stedalign/pkg/imaging"
)

// Instrument is the narrow view of the vendor acquisition software the
// hardware backend drives. The concrete implementation lives outside this
// module; tests script it with fakes.
type Instrument interface {
	// MeasurementNames lists the open measurements, first one primary.
	MeasurementNames() []string

	// ActiveMeasurement returns the currently active measurement.
	ActiveMeasurement() (Measurement, error)

	// Measurement returns the named measurement.
	Measurement(name string) (Measurement, error)

	// Activate makes the measurement the active one.
	Activate(m Measurement) error

	// Start begins live acquisition on the measurement.
	Start(m Measurement) error

	// Pause halts live acquisition, freezing the frame buffer.
	Pause(m Measurement) error
}

// Measurement is one open measurement inside the instrument session.
type Measurement interface {
	// ActiveConfiguration returns the currently selected configuration.
	ActiveConfiguration() (Configuration, error)

	// Configuration returns the named measurement configuration.
	Configuration(name string) (Configuration, error)

	// Activate selects the configuration within the measurement.
	Activate(c Configuration) error

	// StackData reads the frame buffer of the named capture channel and
	// returns it row-major with its dimensions.
	StackData(channel string) ([]float64, int, int, error)

	// SaveAs persists the measurement in the instrument's native format.
	SaveAs(path string) error
}

// Configuration exposes the parameter tree of one measurement
// configuration.
type Configuration interface {
	Parameter(path string) (float64, error)
	SetParameter(path string, value float64) error
}

// Parameter tree paths for the galvo (fine) and stage (coarse) offsets.
var (
	fineOffsetPaths = [3]string{
		"ExpControl/scan/range/x/g_off",
		"ExpControl/scan/range/y/g_off",
		"ExpControl/scan/range/z/g_off",
	}
	coarseOffsetPaths = [3]string{
		"ExpControl/scan/range/offsets/coarse/x/g_off",
		"ExpControl/scan/range/offsets/coarse/y/g_off",
		"ExpControl/scan/range/offsets/coarse/z/g_off",
	}
)

// planeOrder fixes the sequence of measurement configurations selected
// during a multi-plane acquisition.
var planeOrder = [3]string{"xy", "xz", "yz"}

// Hardware drives the real microscope through an Instrument session. Each
// acquisition starts the live scan, waits a settle delay, pauses, reads the
// frame buffer and preprocesses it to the working resolution.
type Hardware struct {
	instrument Instrument
	hw         config.HardwareParams
	workingRes int
}

// NewHardware wraps an instrument session. The hardware parameters carry
// the configuration and channel names per plane plus the settle delays.
func NewHardware(instrument Instrument, hw config.HardwareParams, num config.NumericalParams) (*Hardware, error) {
	if instrument == nil {
		return nil, fmt.Errorf("nil instrument session")
	}
	if num.WorkingRes <= 0 {
		return nil, fmt.Errorf("non-positive working resolution")
	}
	return &Hardware{instrument: instrument, hw: hw, workingRes: num.WorkingRes}, nil
}

// activeConfiguration resolves the instrument's current configuration,
// mapping any session failure onto ErrConfigurationUnavailable.
func (h *Hardware) activeConfiguration() (Configuration, error) {
	msr, err := h.instrument.ActiveMeasurement()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationUnavailable, err)
	}
	cfg, err := msr.ActiveConfiguration()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationUnavailable, err)
	}
	return cfg, nil
}

// StageOffsets reads the offset for the mode from the instrument's
// parameter tree.
func (h *Hardware) StageOffsets(mode models.OffsetMode) (models.StageOffset, error) {
	cfg, err := h.activeConfiguration()
	if err != nil {
		return models.StageOffset{}, err
	}

	paths := offsetPaths(mode)
	var out models.StageOffset
	for i, p := range paths {
		v, err := cfg.Parameter(p)
		if err != nil {
			return models.StageOffset{}, fmt.Errorf("reading %s: %v", p, err)
		}
		out[i] = v
	}
	return out, nil
}

// SetStageOffsets writes the offset for the mode into the instrument's
// parameter tree. Writing the same offset twice is a no-op on the hardware.
func (h *Hardware) SetStageOffsets(offset models.StageOffset, mode models.OffsetMode) error {
	cfg, err := h.activeConfiguration()
	if err != nil {
		return err
	}

	paths := offsetPaths(mode)
	for i, p := range paths {
		if err := cfg.SetParameter(p, offset[i]); err != nil {
			return fmt.Errorf("writing %s: %v", p, err)
		}
	}
	return nil
}

func offsetPaths(mode models.OffsetMode) [3]string {
	if mode == models.Coarse {
		return coarseOffsetPaths
	}
	return fineOffsetPaths
}

// grabImage performs one live-acquisition cycle on the measurement: start,
// settle, pause, read the channel's frame buffer, preprocess, then the
// shorter readback delay. Stats come from the raw frame.
func (h *Hardware) grabImage(msr Measurement, channel string) ([]float64, models.AcquireStats, error) {
	if err := h.instrument.Start(msr); err != nil {
		return nil, models.AcquireStats{}, fmt.Errorf("%w: starting acquisition: %v", ErrConfigurationUnavailable, err)
	}
	time.Sleep(h.hw.Settle())
	if err := h.instrument.Pause(msr); err != nil {
		return nil, models.AcquireStats{}, fmt.Errorf("%w: pausing acquisition: %v", ErrConfigurationUnavailable, err)
	}

	raw, w, ht, err := msr.StackData(channel)
	if err != nil {
		return nil, models.AcquireStats{}, fmt.Errorf("%w: channel %q: %v", ErrAcquisitionWindowNotFound, channel, err)
	}

	stats := imaging.Stats(raw)
	plane, err := imaging.Preprocess(raw, w, ht, h.workingRes)
	if err != nil {
		return nil, models.AcquireStats{}, fmt.Errorf("preprocessing channel %q: %v", channel, err)
	}

	time.Sleep(h.hw.Readback())
	return plane, stats, nil
}

// acquirePlane selects the measurement configuration for the named plane
// and grabs one frame from its capture channel.
func (h *Hardware) acquirePlane(msr Measurement, plane string) ([]float64, models.AcquireStats, error) {
	name, ok := h.hw.ConfigNames[plane]
	if !ok {
		return nil, models.AcquireStats{}, fmt.Errorf("%w: no configuration mapped for plane %s", ErrAcquisitionWindowNotFound, plane)
	}
	channel, ok := h.hw.ChannelNames[plane]
	if !ok {
		return nil, models.AcquireStats{}, fmt.Errorf("%w: no channel mapped for plane %s", ErrAcquisitionWindowNotFound, plane)
	}

	cfg, err := msr.Configuration(name)
	if err != nil {
		return nil, models.AcquireStats{}, fmt.Errorf("%w: configuration %q: %v", ErrAcquisitionWindowNotFound, name, err)
	}
	if err := msr.Activate(cfg); err != nil {
		return nil, models.AcquireStats{}, fmt.Errorf("%w: activating %q: %v", ErrAcquisitionWindowNotFound, name, err)
	}

	return h.grabImage(msr, channel)
}

// AcquireImage captures the xy plane, and for multi acquisitions also the
// xz and yz planes, by sequentially selecting their measurement
// configurations. A missing configuration or channel aborts the whole call;
// partial planes are discarded, never returned. The mask offset and
// aberration vector are owned by the modulator control path and do not
// enter the capture itself.
func (h *Hardware) AcquireImage(multi bool, maskOffset models.PhaseMaskOffset, aberrs models.AberrationVector) (*Acquisition, error) {
	names := h.instrument.MeasurementNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no open measurements", ErrConfigurationUnavailable)
	}

	msr, err := h.instrument.Measurement(names[0])
	if err != nil {
		return nil, fmt.Errorf("%w: measurement %q: %v", ErrConfigurationUnavailable, names[0], err)
	}
	if err := h.instrument.Activate(msr); err != nil {
		return nil, fmt.Errorf("%w: activating measurement: %v", ErrConfigurationUnavailable, err)
	}

	primary, stats, err := h.acquirePlane(msr, planeOrder[0])
	if err != nil {
		return nil, err
	}

	acq := &Acquisition{Multi: multi, Res: h.workingRes, Stats: stats}
	if !multi {
		acq.Image = primary
		return acq, nil
	}

	n := h.workingRes * h.workingRes
	acq.Image = make([]float64, 3*n)
	copy(acq.Image[:n], primary)

	for i, plane := range planeOrder[1:] {
		p, _, err := h.acquirePlane(msr, plane)
		if err != nil {
			return nil, err
		}
		copy(acq.Image[(i+1)*n:(i+2)*n], p)
	}
	return acq, nil
}

// SaveImage persists the active measurement in the instrument's native
// format.
func (h *Hardware) SaveImage(path string) error {
	msr, err := h.instrument.ActiveMeasurement()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigurationUnavailable, err)
	}
	if err := msr.SaveAs(path + ".msr"); err != nil {
		return fmt.Errorf("saving measurement: %v", err)
	}
	return nil
}

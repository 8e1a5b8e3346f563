package pipeline

import (
	"github.com/rustyeddy/crowding/config"
	"github.com/rustyeddy/crowding/crowding"
	"github.com/rustyeddy/crowding/dataset"
	"github.com/rustyeddy/crowding/drawdown"
	"github.com/rustyeddy/crowding/model"
)

// CrowdingOptions maps the crowding section of cfg.
func CrowdingOptions(cfg *config.Config) crowding.Options {
	c := cfg.Crowding
	return crowding.Options{
		ShortWindow:         c.ShortWindow,
		MediumWindow:        c.MediumWindow,
		LongWindow:          c.LongWindow,
		SmoothingWindow:     c.SmoothingWindow,
		WinsorizeLower:      c.WinsorizeLower,
		WinsorizeUpper:      c.WinsorizeUpper,
		WinsorizeWindow:     c.WinsorizeWindow,
		CrashFreqPercentile: c.CrashFreqPercentile,
		ReturnSuffix:        c.ReturnSuffix,
		VolumeSuffix:        c.VolumeSuffix,
		Instruments:         c.Instruments,
		Factors:             c.Factors,
		StressColumn:        c.StressColumn,
	}
}

// DrawdownOptions maps the drawdown section of cfg. DepthPct is converted
// to a fraction.
func DrawdownOptions(cfg *config.Config) (drawdown.Options, error) {
	d := cfg.Drawdown
	method, err := drawdown.ParseMethod(d.Method)
	if err != nil {
		return drawdown.Options{}, err
	}
	return drawdown.Options{
		Depth: d.DepthPct / 100,
		Flags: drawdown.FlagOptions{
			Horizon:    d.DailyHorizon,
			Percentile: d.CrashPercentile,
			Method:     method,
			MinHistory: d.MinHistory,
			Lookback:   d.Lookback,
		},
		DailyHorizon:  d.DailyHorizon,
		WeeklyHorizon: d.WeeklyHorizon,
	}, nil
}

// DatasetOptions maps the dataset section of cfg for one horizon. The
// stress bands use the long crowding window.
func DatasetOptions(cfg *config.Config, horizon int) dataset.Options {
	d := cfg.Dataset
	return dataset.Options{
		Horizon:              horizon,
		Label:                dataset.LabelMode(d.Label),
		Target:               d.Target,
		Tracked:              d.Tracked,
		ControlWindow:        d.ControlWindow,
		StressColumn:         cfg.Crowding.StressColumn,
		StressWindow:         cfg.Crowding.LongWindow,
		HighStressPercentile: d.HighStressPercentile,
		LowStressPercentile:  d.LowStressPercentile,
	}
}

// ModelOptions maps the model section of cfg for one horizon. A negative
// embargo becomes the horizon itself.
func ModelOptions(cfg *config.Config, horizon int) model.Options {
	m := cfg.Model
	embargo := m.Embargo
	if embargo < 0 {
		embargo = horizon
	}
	return model.Options{
		HoldoutFraction: m.HoldoutFraction,
		Seed:            m.Seed,
		Split:           model.SplitMode(m.Split),
		Embargo:         embargo,
		ClassWeight:     model.ClassWeight(m.ClassWeight),
		Features:        m.Features,
		MaxIter:         m.MaxIter,
		Tolerance:       m.Tolerance,
		Ridge:           m.Ridge,
	}
}

// Package model defines the core domain types used throughout the application.
package model

import (
	"fmt"

	"github.com/statespace/dsgefc/internal/common"
)

// CondType selects how much nowcast information is appended to the data
// before forecasting.
type CondType string

// Conditioning type constants.
const (
	CondNone CondType = "none"
	CondSemi CondType = "semi"
	CondFull CondType = "full"
)

// InputType selects which parameter draws feed a forecast run.
type InputType string

// Input type constants.
const (
	InputMode   InputType = "mode"
	InputMean   InputType = "mean"
	InputFull   InputType = "full"
	InputSubset InputType = "subset"
)

// OutputType selects which artifacts a forecast run produces.
type OutputType string

// Output type constants.
const (
	OutputStates     OutputType = "states"
	OutputShocks     OutputType = "shocks"
	OutputShocksNS   OutputType = "shocks_nonstandardized"
	OutputForecast   OutputType = "forecast"
	OutputShockdec   OutputType = "shockdec"
	OutputDettrend   OutputType = "dettrend"
	OutputCounter    OutputType = "counter"
	OutputSimple     OutputType = "simple"
	OutputSimpleCond OutputType = "simple_cond"
	OutputAll        OutputType = "all"
)

// ParseCondType validates a conditioning type string.
func ParseCondType(s string) (CondType, error) {
	switch ct := CondType(s); ct {
	case CondNone, CondSemi, CondFull:
		return ct, nil
	default:
		return "", fmt.Errorf("%w: conditioning type %q", common.ErrInvalidEnumValue, s)
	}
}

// ParseInputType validates an input type string.
func ParseInputType(s string) (InputType, error) {
	switch it := InputType(s); it {
	case InputMode, InputMean, InputFull, InputSubset:
		return it, nil
	default:
		return "", fmt.Errorf("%w: input type %q", common.ErrInvalidEnumValue, s)
	}
}

// ParseOutputType validates an output type string.
func ParseOutputType(s string) (OutputType, error) {
	switch ot := OutputType(s); ot {
	case OutputStates, OutputShocks, OutputShocksNS, OutputForecast,
		OutputShockdec, OutputDettrend, OutputCounter,
		OutputSimple, OutputSimpleCond, OutputAll:
		return ot, nil
	default:
		return "", fmt.Errorf("%w: output type %q", common.ErrInvalidEnumValue, s)
	}
}

// ExpandOutputTypes replaces the "all" output type with the union of every
// concrete output type, deduplicating the rest.
func ExpandOutputTypes(outputs []OutputType) []OutputType {
	concrete := []OutputType{
		OutputStates, OutputShocks, OutputShocksNS, OutputForecast,
		OutputShockdec, OutputDettrend, OutputCounter,
		OutputSimple, OutputSimpleCond,
	}

	seen := make(map[OutputType]bool, len(concrete))
	expanded := make([]OutputType, 0, len(concrete))
	add := func(ot OutputType) {
		if !seen[ot] {
			seen[ot] = true
			expanded = append(expanded, ot)
		}
	}

	for _, ot := range outputs {
		if ot == OutputAll {
			for _, c := range concrete {
				add(c)
			}
			continue
		}
		add(ot)
	}

	return expanded
}

// ResultNames returns the persistence result names an output type produces.
func (o OutputType) ResultNames() []string {
	switch o {
	case OutputStates:
		return []string{"histstates", "histpseudo"}
	case OutputShocks:
		return []string{"histshocks"}
	case OutputShocksNS:
		return []string{"histshocksns"}
	case OutputForecast:
		return []string{"forecaststates", "forecastobs"}
	case OutputShockdec:
		return []string{"shockdecstates", "shockdecobs"}
	case OutputDettrend:
		return []string{"dettrendstates", "dettrendobs"}
	case OutputCounter:
		return []string{"counterstates", "counterobs"}
	case OutputSimple:
		return []string{"simplestates", "simpleobs"}
	case OutputSimpleCond:
		return []string{"simplecondstates", "simplecondobs"}
	case OutputAll:
		names := make([]string, 0, 16)
		for _, ot := range ExpandOutputTypes([]OutputType{OutputAll}) {
			names = append(names, ot.ResultNames()...)
		}
		return names
	default:
		return nil
	}
}

// ArtifactKey builds the deterministic persistence key for one artifact.
func ArtifactKey(draw int, input InputType, cond CondType, result string) string {
	return fmt.Sprintf("%d_para=%s_cond=%s_%s", draw, input, cond, result)
}

// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/staranto/sangre/internal/output"
)

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if s, ok := value.(string); ok && strings.HasPrefix(s, "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func OutputValidator(value any) error {
	s, _ := value.(string)
	if !slices.Contains(output.Formats, s) {
		return fmt.Errorf("must be one of %v", output.Formats)
	}
	return nil
}

func PositiveValidator(value any) error {
	var ok bool
	switch v := value.(type) {
	case int:
		ok = v > 0
	case int64:
		ok = v > 0
	case time.Duration:
		ok = v > 0
	}
	if !ok {
		return errors.New("must be greater than zero")
	}
	return nil
}

// SecondsValidator rejects durations shorter than a second, the resolution
// cache TTLs are stored at.
func SecondsValidator(value any) error {
	if d, ok := value.(time.Duration); ok && d < time.Second {
		return errors.New("must be at least 1s")
	}
	return nil
}

// ModeValidator rejects more than one of the exclusive mode flags.
func ModeValidator(cmd *cli.Command) error {
	var set []string
	for _, name := range []string{"status", "clear-cache", "clear-all"} {
		if cmd.Bool(name) {
			set = append(set, "--"+name)
		}
	}
	if len(set) > 1 {
		return fmt.Errorf("%s cannot be combined", strings.Join(set, " and "))
	}
	return nil
}

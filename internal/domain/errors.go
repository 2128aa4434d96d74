/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "errors"

var (
	ErrMissingConfig = errors.New("missing required source configuration")
	ErrCycle         = errors.New("epic tree contains a cycle")
	ErrNoSnapshot    = errors.New("no snapshot loaded")
	ErrInvalidWindow = errors.New("invalid date window")
	ErrNoReport      = errors.New("no report generated yet")
)

// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build debug

package controller

import (
	"fmt"
	"strings"
)

func (c *SessionController) validateState() {
	if v := c.violations(); len(v) > 0 {
		panic(fmt.Sprintf("session controller invariant violated: %s", strings.Join(v, "; ")))
	}
}

// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !debug

package controller

func (c *SessionController) validateState() {
	v := c.violations()
	if len(v) == 0 {
		return
	}
	invariantViolationsTotal.Add(float64(len(v)))
	c.logger.Error().Strs("violations", v).Msg("session controller invariant violated, repairing")
	c.repair()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package google

// WrapErr exposes wrapErr for white-box testing.
func (a *Adapter) WrapErr(err error) error { return a.wrapErr(err) }

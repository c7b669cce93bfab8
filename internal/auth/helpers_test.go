// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package auth_test

import "context"

// passthroughTx runs the callback directly. Service tests assert the
// repository calls inside the transaction; commit/rollback behavior is
// covered by the postgres transactor tests.
type passthroughTx struct{}

func (passthroughTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

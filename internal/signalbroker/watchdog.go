// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
)

// Watch reads sigCh until it is closed or ctx is done.
// The first signal calls cancel. A repeat of a signal already seen calls force,
// which is expected to exit the process.
func Watch(ctx context.Context, sigCh <-chan os.Signal, cancel context.CancelFunc, force func()) {
	seen := make(map[os.Signal]struct{})
	done := ctx.Done()

	for {
		select {
		case sig, ok := <-sigCh:
			if !ok {
				return
			}

			if _, dup := seen[sig]; dup {
				ctxlog.Logger(ctx).Warn("watchdog", "detail", "received second signal of type, forcing exit", "signal", sig.String())

				if force != nil {
					force()
				}

				return
			}

			seen[sig] = struct{}{}

			ctxlog.Logger(ctx).Warn("watchdog", "detail", "received signal, killing running stages", "signal", sig.String())
			cancel()

		case <-done:
			if len(seen) == 0 {
				return
			}

			// cancelled by a signal: keep listening so a repeat can still force an exit
			done = nil
		}
	}
}

// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package beeju

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
)

// startPolicy bounds the wait for a service to report that it started.
type startPolicy struct {
	attempts uint
	interval time.Duration
	// signalled checks block for up to interval themselves; polled checks
	// return at once and are spaced interval apart.
	signalled bool
}

var (
	polledStart      = startPolicy{attempts: 5, interval: time.Second}
	signalledStart   = startPolicy{attempts: 3, interval: time.Minute, signalled: true}
	errNotStartedYet = errors.New("not started yet")
)

// readinessCheck reports nil once the service started and errNotStartedYet
// while it is still starting. Any other error aborts the wait. wait is how
// long a signalled check may block.
type readinessCheck func(ctx context.Context, wait time.Duration) error

// awaitStarted runs check until it succeeds, fails, or the attempts of p
// run out.
func awaitStarted(ctx context.Context, name string, p startPolicy, check readinessCheck) error {
	delay, wait := p.interval, time.Duration(0)
	if p.signalled {
		delay, wait = 0, p.interval
	}

	var attempts uint
	err := retry.Do(
		func() error {
			attempts++

			return check(ctx, wait)
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errNotStartedYet) }),
	)

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %s: %w", ErrServiceStart, name, ctx.Err())
	case errors.Is(err, errNotStartedYet):
		return fmt.Errorf("%w: %s did not start after %d attempts", ErrServiceStartTimeout, name, attempts)
	default:
		return fmt.Errorf("%w: %s: %w", ErrServiceStart, name, err)
	}
}

// signalReady adapts a started signal and a failure channel to a
// signalled readiness check.
func signalReady(started <-chan struct{}, failed <-chan error) readinessCheck {
	return func(ctx context.Context, wait time.Duration) error {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-started:
			return nil
		case err := <-failed:
			if err == nil {
				err = errors.New("service exited before it started")
			}

			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errNotStartedYet
		}
	}
}

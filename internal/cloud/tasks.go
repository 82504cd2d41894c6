package cloud

import (
	"context"
	"time"
)

// Task declares a periodic cloud-side job: a default period and an invoke
// hook the server loop calls on its own spawned future (§4.9, §4.10).
// OTA update, logging shipment, and provisioning are each one Task the core
// schedules but does not define the internals of (§1 Non-goals).
type Task struct {
	Name          string
	DefaultPeriod time.Duration
	// Invoke runs one tick. A non-nil newPeriod changes the task's period
	// from the next tick onward. A returned error causes the cloud client
	// to be dropped and recreated (§4.9).
	Invoke func(ctx context.Context, client *Client) (newPeriod *time.Duration, err error)
}

// SpawnPeriodicTasks runs each task on its own goroutine, sleeping for its
// current period, then invoking its hook under a read lock on client
// (§4.10: "under a read lock on the client, invoking its hook"). It returns
// a channel that receives the first task error, signaling the caller to
// drop and recreate the client.
func SpawnPeriodicTasks(ctx context.Context, client *Client, tasks []Task) <-chan error {
	errCh := make(chan error, len(tasks))
	for _, t := range tasks {
		go runPeriodicTask(ctx, client, t, errCh)
	}
	return errCh
}

func runPeriodicTask(ctx context.Context, client *Client, t Task, errCh chan<- error) {
	period := t.DefaultPeriod
	if period <= 0 {
		period = time.Minute
	}
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			client.mu.RLock()
			newPeriod, err := t.Invoke(ctx, client)
			client.mu.RUnlock()

			if err != nil {
				Logger.Error(err, "periodic task failed, cloud client will be recreated", "task", t.Name)
				select {
				case errCh <- err:
				default:
				}
				return
			}
			if newPeriod != nil {
				period = *newPeriod
			}
			timer.Reset(period)
		}
	}
}

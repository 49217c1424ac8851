package replication

import (
	"context"

	"github.com/catalogmirror/backend/internal/domain/job"
)

// Handlers maps job kinds to the services that run them.
func Handlers(o *Orchestrator, f *FanOut, g *Gate, b *ImageBackup) map[job.Kind]job.Handler {
	return map[job.Kind]job.Handler{
		job.KindWebhook: job.HandlerFunc(func(ctx context.Context, j *job.Job) error {
			var t WebhookTask
			if err := j.Decode(&t); err != nil {
				return err
			}
			return f.Dispatch(ctx, t)
		}),
		job.KindReplicateCreate: job.HandlerFunc(func(ctx context.Context, j *job.Job) error {
			var t Task
			if err := j.Decode(&t); err != nil {
				return err
			}
			return o.Create(ctx, t)
		}),
		job.KindReplicateUpdate: job.HandlerFunc(func(ctx context.Context, j *job.Job) error {
			var t Task
			if err := j.Decode(&t); err != nil {
				return err
			}
			return o.Update(ctx, t)
		}),
		job.KindGateWatermark: job.HandlerFunc(func(ctx context.Context, j *job.Job) error {
			var t GateTask
			if err := j.Decode(&t); err != nil {
				return err
			}
			return g.Handle(ctx, t, j.Attempts)
		}),
		job.KindImagesBackup: job.HandlerFunc(func(ctx context.Context, j *job.Job) error {
			var t BackupTask
			if err := j.Decode(&t); err != nil {
				return err
			}
			return b.Handle(ctx, t)
		}),
	}
}

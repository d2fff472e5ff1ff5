package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/google/uuid"

	"ferry/internal/config"
	"ferry/internal/queue"
)

const (
	qbitResolveRetries = 5
	qbitResolveDelay   = 200 * time.Millisecond
)

var qbitStates = map[qbt.TorrentState]queue.Status{
	qbt.TorrentStateUploading:          queue.StatusCompleted,
	qbt.TorrentStateStalledUp:          queue.StatusCompleted,
	qbt.TorrentStateQueuedUp:           queue.StatusCompleted,
	qbt.TorrentStateForcedUp:           queue.StatusCompleted,
	qbt.TorrentStateCheckingUp:         queue.StatusCompleted,
	qbt.TorrentStatePausedUp:           queue.StatusCompleted,
	qbt.TorrentStatePausedDl:           queue.StatusPaused,
	qbt.TorrentStateQueuedDl:           queue.StatusQueued,
	qbt.TorrentStateMetaDl:             queue.StatusQueued,
	qbt.TorrentStateCheckingDl:         queue.StatusQueued,
	qbt.TorrentStateAllocating:         queue.StatusQueued,
	qbt.TorrentStateCheckingResumeData: queue.StatusQueued,
	qbt.TorrentStateDownloading:        queue.StatusDownloading,
	qbt.TorrentStateForcedDl:           queue.StatusDownloading,
	qbt.TorrentStateStalledDl:          queue.StatusDownloading,
	qbt.TorrentStateMoving:             queue.StatusDownloading,
	qbt.TorrentStateError:              queue.StatusFailed,
	qbt.TorrentStateMissingFiles:       queue.StatusFailed,

	// qBittorrent 5 renamed paused to stopped and added forced metadata fetches.
	qbt.TorrentState("stoppedUP"):    queue.StatusCompleted,
	qbt.TorrentState("stoppedDL"):    queue.StatusPaused,
	qbt.TorrentState("forcedMetaDL"): queue.StatusQueued,
}

// qBittorrent drives the Web API v2 through go-qbittorrent. The library keeps
// the SID cookie; session only decides when to log in again.
type qBittorrent struct {
	base
	client *qbt.Client
}

func newQBittorrent(cfg config.Agent, logger *slog.Logger) *qBittorrent {
	q := &qBittorrent{
		base: newBase(cfg, config.AgentQBittorrent, logger),
		client: qbt.NewClient(qbt.Config{
			Host:     strings.TrimRight(cfg.BaseURL(), "/"),
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  int(cfg.Timeout() / time.Second),
		}),
	}
	q.session = newSession(q.login)
	return q
}

func (q *qBittorrent) login(ctx context.Context) (string, error) {
	if err := q.client.LoginCtx(ctx); err != nil {
		return "", fmt.Errorf("qbittorrent login: %w", err)
	}
	return "cookie-jar", nil
}

// qbitCall runs op inside the session. Any failure that is not a transport or
// context error is treated as a stale cookie and gets one fresh login.
func qbitCall[T any](ctx context.Context, q *qBittorrent, op func(ctx context.Context) (T, error)) (T, error) {
	return withSession(ctx, q.session, func(ctx context.Context, _ string) (T, error) {
		result, err := op(ctx)
		if err != nil && !isTransportError(err) {
			return result, fmt.Errorf("%w: %w", errAuthRejected, err)
		}
		return result, err
	})
}

func isTransportError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (q *qBittorrent) TestConnection(ctx context.Context) error {
	q.session.reset()
	if _, err := qbitCall(ctx, q, q.client.GetAppVersionCtx); err != nil {
		return q.unreachable(ctx, "test connection", err)
	}
	return nil
}

func (q *qBittorrent) Enqueue(ctx context.Context, sourceURI, category string) string {
	tag := "ferry-" + uuid.NewString()
	_, err := qbitCall(ctx, q, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, q.client.AddTorrentFromUrlCtx(ctx, sourceURI, map[string]string{
			"category": category,
			"tags":     tag,
		})
	})
	if err != nil {
		q.unreachable(ctx, "enqueue", err)
		return ""
	}
	for attempt := 0; attempt < qbitResolveRetries; attempt++ {
		torrents, err := q.torrents(ctx, qbt.TorrentFilterOptions{Tag: tag})
		if err != nil {
			q.unreachable(ctx, "resolve handle", err)
			return ""
		}
		if len(torrents) > 0 && torrents[0].Hash != "" {
			return strings.ToLower(torrents[0].Hash)
		}
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(qbitResolveDelay):
		}
	}
	q.unreachable(ctx, "resolve handle", fmt.Errorf("no torrent tagged %s", tag))
	return ""
}

func (q *qBittorrent) torrents(ctx context.Context, filter qbt.TorrentFilterOptions) ([]qbt.Torrent, error) {
	return qbitCall(ctx, q, func(ctx context.Context) ([]qbt.Torrent, error) {
		return q.client.GetTorrentsCtx(ctx, filter)
	})
}

func (q *qBittorrent) Status(ctx context.Context, handle string) *Snapshot {
	torrents, err := q.torrents(ctx, qbt.TorrentFilterOptions{Hashes: []string{handle}})
	if err != nil {
		q.unreachable(ctx, "status", err)
		return nil
	}
	if len(torrents) == 0 {
		return missingSnapshot()
	}
	t := torrents[0]
	content := t.ContentPath
	if content == "" && t.SavePath != "" {
		content = filepath.Join(t.SavePath, t.Name)
	}
	return &Snapshot{
		Status:      q.mapState(t.State),
		VendorState: string(t.State),
		Progress:    t.Progress,
		Name:        t.Name,
		ContentPath: content,
	}
}

func (q *qBittorrent) mapState(state qbt.TorrentState) queue.Status {
	if status, ok := qbitStates[state]; ok {
		return status
	}
	q.unmapped(string(state))
	return queue.StatusDownloading
}

func (q *qBittorrent) Pause(ctx context.Context, handle string) bool {
	return q.act(ctx, "pause", func(ctx context.Context) error {
		return q.client.PauseCtx(ctx, []string{handle})
	})
}

func (q *qBittorrent) Resume(ctx context.Context, handle string) bool {
	return q.act(ctx, "resume", func(ctx context.Context) error {
		return q.client.ResumeCtx(ctx, []string{handle})
	})
}

func (q *qBittorrent) Remove(ctx context.Context, handle string, deleteData bool) bool {
	return q.act(ctx, "remove", func(ctx context.Context) error {
		return q.client.DeleteTorrentsCtx(ctx, []string{handle}, deleteData)
	})
}

func (q *qBittorrent) act(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	_, err := qbitCall(ctx, q, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if err != nil {
		q.unreachable(ctx, op, err)
		return false
	}
	return true
}

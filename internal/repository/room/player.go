package room

import "github.com/sharetube/syncwatch/internal/domain"

type SetSnapshotParams struct {
	RoomId   string
	Snapshot domain.PlaybackSnapshot
}

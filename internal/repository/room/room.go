package room

import "github.com/sharetube/syncwatch/internal/domain"

type Room struct {
	RoomId   string
	VideoRef *string
	HostId   *string
	Snapshot domain.PlaybackSnapshot
	// Members in join order.
	Members []string
}

func (r Room) IsMember(connectionId string) bool {
	for _, m := range r.Members {
		if m == connectionId {
			return true
		}
	}

	return false
}

func (r Room) IsHost(connectionId string) bool {
	return r.HostId != nil && *r.HostId == connectionId
}

type CreateRoomParams struct {
	RoomId   string
	HostId   string
	Snapshot domain.PlaybackSnapshot
}

type SetVideoParams struct {
	RoomId   string
	VideoRef *string
	Snapshot domain.PlaybackSnapshot
}

type SetHostParams struct {
	RoomId string
	HostId *string
}

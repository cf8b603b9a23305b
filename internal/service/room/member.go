package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/internal/repository/room"
)

type JoinRoomParams struct {
	ConnectionId string
	RoomId       string
	DisplayName  string
}

type JoinRoomResponse struct {
	Room    room.Room
	Created bool
}

// JoinRoom attaches the connection to the room, creating it with the connection as host when
// it does not exist yet. The joiner receives room-state and the other members receive peer-join.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	r, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	created, hostClaimed, rejoined := false, false, false
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		if err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
			RoomId:   params.RoomId,
			HostId:   params.ConnectionId,
			Snapshot: domain.NewSnapshot(s.clock.Now().UnixMilli()),
		}); err != nil {
			s.logger.InfoContext(ctx, "failed to create room", "error", err)
			return JoinRoomResponse{}, err
		}

		created = true
		s.metrics.RoomCreated()
	case err != nil:
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return JoinRoomResponse{}, err
	default:
		rejoined = r.IsMember(params.ConnectionId)
		if !rejoined && len(r.Members) >= s.membersLimit {
			return JoinRoomResponse{}, ErrRoomFull
		}

		if r.HostId == nil {
			hostClaimed = true
		}
	}

	if err := s.roomRepo.AddMember(ctx, &room.AddMemberParams{
		MemberId: params.ConnectionId,
		RoomId:   params.RoomId,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to add member", "error", err)
		return JoinRoomResponse{}, err
	}

	if hostClaimed {
		if err := s.roomRepo.SetHost(ctx, &room.SetHostParams{
			RoomId: params.RoomId,
			HostId: &params.ConnectionId,
		}); err != nil {
			s.logger.InfoContext(ctx, "failed to set host", "error", err)
			return JoinRoomResponse{}, err
		}

		s.metrics.HostChanged("join")
	}

	r, err = s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return JoinRoomResponse{}, err
	}

	others := without(r.Members, params.ConnectionId)
	s.send(ctx, []string{params.ConnectionId}, roomStateMessage(r))
	if !rejoined {
		s.send(ctx, others, &domain.Message{
			Type: domain.EventPeerJoin,
			Payload: domain.PeerJoinPayload{
				ConnectionId: params.ConnectionId,
				DisplayName:  params.DisplayName,
			},
		})
	}
	if hostClaimed {
		s.send(ctx, others, domain.NewHostChangedMessage(r.HostId))
	}

	return JoinRoomResponse{
		Room:    r,
		Created: created,
	}, nil
}

type DisconnectMemberParams struct {
	ConnectionId string
	RoomId       string
}

type DisconnectMemberResponse struct {
	NewHostId   *string
	HostChanged bool
	RoomRemoved bool
}

// DisconnectMember removes the connection from the room. A departing host is replaced by the
// earliest remaining member; the room is removed once nobody is left.
func (s service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	r, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, err
	}

	if err := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
		MemberId: params.ConnectionId,
		RoomId:   params.RoomId,
	}); err != nil {
		return DisconnectMemberResponse{}, err
	}

	remaining := without(r.Members, params.ConnectionId)
	var resp DisconnectMemberResponse

	// A stale host reference is repaired here too.
	if r.IsHost(params.ConnectionId) || (r.HostId != nil && !r.IsMember(*r.HostId)) {
		var next *string
		if len(remaining) > 0 {
			next = &remaining[0]
		}

		if err := s.roomRepo.SetHost(ctx, &room.SetHostParams{
			RoomId: params.RoomId,
			HostId: next,
		}); err != nil {
			s.logger.InfoContext(ctx, "failed to set host", "error", err)
			return DisconnectMemberResponse{}, err
		}

		resp.NewHostId = next
		resp.HostChanged = true
		s.metrics.HostChanged("disconnect")
		s.send(ctx, remaining, domain.NewHostChangedMessage(next))
	}

	if len(remaining) == 0 {
		if err := s.roomRepo.RemoveRoom(ctx, params.RoomId); err != nil {
			s.logger.InfoContext(ctx, "failed to remove room", "error", err)
			return DisconnectMemberResponse{}, fmt.Errorf("failed to remove room: %w", err)
		}

		resp.RoomRemoved = true
		s.metrics.RoomRemoved()
	}

	return resp, nil
}

type RequestHostParams struct {
	ConnectionId string
	RoomId       string
}

// RequestHost hands host to the requester if the current host is gone.
func (s service) RequestHost(ctx context.Context, params *RequestHostParams) error {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	r, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return err
	}

	if !r.IsMember(params.ConnectionId) {
		return ErrNotMember
	}

	if r.IsHost(params.ConnectionId) {
		return nil
	}

	if r.HostId != nil && r.IsMember(*r.HostId) {
		return ErrPermissionDenied
	}

	if err := s.roomRepo.SetHost(ctx, &room.SetHostParams{
		RoomId: params.RoomId,
		HostId: &params.ConnectionId,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to set host", "error", err)
		return err
	}

	s.metrics.HostChanged("request")
	s.send(ctx, r.Members, domain.NewHostChangedMessage(&params.ConnectionId))

	return nil
}

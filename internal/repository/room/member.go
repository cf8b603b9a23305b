package room

type AddMemberParams struct {
	MemberId string
	RoomId   string
}

type RemoveMemberParams struct {
	MemberId string
	RoomId   string
}

package roomhandler

type JoinRoomBody struct {
	RoomName string `json:"roomName" binding:"required" example:"demo"`
} // @name JoinRoomRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type StoredRoom struct {
	Name           string `json:"name"           example:"demo"`
	ContentPreview string `json:"contentPreview" example:"hello"`
} // @name StoredRoom

package app

// Room naming convention shared by the orchestrator and the transport.
//
//	lobby_<accessCode>            pre-game waiting room
//	live_<accessCode>             shared live room
//	live_<accessCode>_<userID>    private room for one deferred run
//	dashboard_<gameID>            teacher control view
//	projection_<gameID>           classroom display view

func LobbyRoom(accessCode string) string {
	return "lobby_" + accessCode
}

func LiveRoom(accessCode string) string {
	return "live_" + accessCode
}

func DeferredRoom(accessCode, userID string) string {
	return "live_" + accessCode + "_" + userID
}

func DashboardRoom(gameID string) string {
	return "dashboard_" + gameID
}

func ProjectionRoom(gameID string) string {
	return "projection_" + gameID
}

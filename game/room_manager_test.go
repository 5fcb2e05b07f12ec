package game

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"xqmahjong/conn"
	"xqmahjong/game/engines"
	"xqmahjong/game/engines/xiangqi"
	"xqmahjong/game/share"
)

func TestMain(m *testing.M) {
	engines.RegisterPrototype(engines.XiangqiMahjong4pEngine, xiangqi.NewXiangqiMahjong4p(xiangqi.Tuning{
		TurnSeconds:      50,
		ClaimSeconds:     50,
		AiThinkMin:       2 * time.Millisecond,
		AiThinkMax:       5 * time.Millisecond,
		NextRoundSeconds: 1,
		EmptyRoomSeconds: 60,
	}))
	os.Exit(m.Run())
}

func newDirectory() *RoomManager {
	return NewRoomManager(conn.NewManager())
}

func namedSession(connID, name string) *conn.Session {
	s := conn.NewSession(connID)
	s.SetName(name)
	return s
}

func defaultSettings() share.RoomSettings {
	return share.RoomSettings{RoomName: "雀庄一号", TargetHumans: 2, FillWithAI: true, Rounds: 4}
}

func TestCreateRoomValidation(t *testing.T) {
	rm := newDirectory()

	_, err := rm.CreateRoom(namedSession("c1", ""), defaultSettings())
	require.Error(t, err, "nameless session must not create rooms")

	bad := defaultSettings()
	bad.Rounds = 3
	_, err = rm.CreateRoom(namedSession("c1", "alice"), bad)
	require.Error(t, err, "rounds outside 1/4/8 must fail")

	bad = defaultSettings()
	bad.TargetHumans = 5
	_, err = rm.CreateRoom(namedSession("c1", "alice"), bad)
	require.Error(t, err)
}

func TestCreateJoinListLeave(t *testing.T) {
	rm := newDirectory()
	alice := namedSession("c1", "alice")

	room, err := rm.CreateRoom(alice, defaultSettings())
	require.NoError(t, err)
	require.Equal(t, room.ID, alice.GetRoomID())

	// 同一连接最多在一个房间
	_, err = rm.CreateRoom(alice, defaultSettings())
	require.Error(t, err)

	list := rm.ListRooms()
	require.Len(t, list, 1)
	require.Equal(t, "雀庄一号", list[0].Name)
	require.Equal(t, 1, list[0].CurrentHumans)
	require.Equal(t, "waiting", list[0].Status)
	require.Equal(t, "alice", list[0].HostName)
	require.False(t, list[0].PasswordProtected)

	bob := namedSession("c2", "bob")
	_, err = rm.JoinRoom(bob, "room_missing", "", "bob")
	require.Error(t, err, "unknown room must fail")

	joined, err := rm.JoinRoom(bob, room.ID, "", "bob")
	require.NoError(t, err)
	require.Equal(t, room.ID, joined.ID)

	_, found := rm.GetPlayerRoom("c2")
	require.True(t, found)

	rm.LeaveRoom(bob)
	_, found = rm.GetPlayerRoom("c2")
	require.False(t, found)
	require.Equal(t, "", bob.GetRoomID())

	humans, _, _ := room.Engine.Summary()
	require.Equal(t, 1, humans)
}

func TestJoinRoomPassword(t *testing.T) {
	rm := newDirectory()
	settings := defaultSettings()
	settings.Password = "8907"

	room, err := rm.CreateRoom(namedSession("c1", "alice"), settings)
	require.NoError(t, err)

	_, err = rm.JoinRoom(namedSession("c2", "bob"), room.ID, "0000", "bob")
	require.Error(t, err, "wrong password must fail")

	_, err = rm.JoinRoom(namedSession("c2", "bob"), room.ID, "8907", "bob")
	require.NoError(t, err)

	require.True(t, rm.ListRooms()[0].PasswordProtected)
}

func TestHostTransferOnLeave(t *testing.T) {
	rm := newDirectory()
	alice := namedSession("c1", "alice")
	bob := namedSession("c2", "bob")

	room, err := rm.CreateRoom(alice, defaultSettings())
	require.NoError(t, err)
	_, err = rm.JoinRoom(bob, room.ID, "", "bob")
	require.NoError(t, err)

	rm.LeaveRoom(alice)

	snap := room.Engine.Snapshot("c2").(*xiangqi.GameSnapshot)
	var bobHost bool
	for _, seat := range snap.Seats {
		if seat.Name == "bob" {
			bobHost = seat.IsHost
		}
	}
	require.True(t, bobHost, "host must transfer to the remaining human")
}

func TestReconnectRebindsOfflineSeat(t *testing.T) {
	rm := newDirectory()
	alice := namedSession("c1", "alice")
	bob := namedSession("c2", "bob")

	room, err := rm.CreateRoom(alice, defaultSettings())
	require.NoError(t, err)
	t.Cleanup(func() { rm.DestroyRoom(room.ID) })
	_, err = rm.JoinRoom(bob, room.ID, "", "bob")
	require.NoError(t, err)
	require.NoError(t, room.Engine.StartMatch("c1"))

	// 对局中离开：座位保留、标记离线
	rm.LeaveRoom(bob)
	_, found := rm.GetPlayerRoom("c2")
	require.False(t, found)

	// 同名新连接按重连换绑
	bob2 := namedSession("c3", "bob")
	rejoined, err := rm.JoinRoom(bob2, room.ID, "", "bob")
	require.NoError(t, err)
	require.Equal(t, room.ID, rejoined.ID)

	snap := room.Engine.Snapshot("c3").(*xiangqi.GameSnapshot)
	for _, seat := range snap.Seats {
		if seat.Name == "bob" {
			require.True(t, seat.IsOnline, "rebound seat must be online")
		}
	}
}

func TestStartedRoomRejectsStrangers(t *testing.T) {
	rm := newDirectory()
	alice := namedSession("c1", "alice")
	room, err := rm.CreateRoom(alice, defaultSettings())
	require.NoError(t, err)
	t.Cleanup(func() { rm.DestroyRoom(room.ID) })
	require.NoError(t, room.Engine.StartMatch("c1"))

	_, err = rm.JoinRoom(namedSession("c9", "mallory"), room.ID, "", "mallory")
	require.Error(t, err, "started room must reject non-reconnect joins")

	require.Equal(t, "playing", rm.ListRooms()[0].Status)
}

func TestDestroyRoomClearsRoutes(t *testing.T) {
	rm := newDirectory()
	alice := namedSession("c1", "alice")
	room, err := rm.CreateRoom(alice, defaultSettings())
	require.NoError(t, err)

	rm.DestroyRoom(room.ID)

	_, found := rm.GetRoom(room.ID)
	require.False(t, found)
	_, found = rm.GetPlayerRoom("c1")
	require.False(t, found)
	require.Empty(t, rm.ListRooms())

	rooms, players := rm.GetStats()
	require.Zero(t, rooms)
	require.Zero(t, players)
}

func TestWaitingRoomDissolvesWhenEmpty(t *testing.T) {
	rm := newDirectory()
	alice := namedSession("c1", "alice")
	room, err := rm.CreateRoom(alice, defaultSettings())
	require.NoError(t, err)

	rm.LeaveRoom(alice)

	_, found := rm.GetRoom(room.ID)
	require.False(t, found, "empty waiting room must be destroyed")
}

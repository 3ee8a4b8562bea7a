package hub

import "collab-whiteboard/internal/domain"

// PresenceNotifier 根据成员变化推导在线状态事件，不持有任何状态。
// 每个接收者看到的顺序固定为：user-joined/user-left，user-count，users-list。
type PresenceNotifier struct{}

// Joined 生成加入事件。members 是加入之后的完整成员列表（包含 joiner）。
func (PresenceNotifier) Joined(members []domain.Presence, joiner domain.Presence) []Outbound {
	count := len(members)
	out := make([]Outbound, 0, 2*count+1)
	for _, m := range members {
		if m.ID == joiner.ID {
			continue
		}
		out = append(out, Outbound{
			Target:  m.ID,
			Event:   EventUserJoined,
			Payload: UserJoinedPayload{Username: joiner.Username, UserID: joiner.ID, UserCount: count},
		})
	}
	for _, m := range members {
		out = append(out, Outbound{Target: m.ID, Event: EventUserCount, Payload: UserCountPayload{Count: count}})
	}
	list := make(UsersListPayload, len(members))
	copy(list, members)
	out = append(out, Outbound{Target: joiner.ID, Event: EventUsersList, Payload: list})
	return out
}

// Left 生成离开事件。remaining 为空时没有接收者，返回 nil。
func (PresenceNotifier) Left(remaining []domain.Presence, leaver domain.Presence) []Outbound {
	count := len(remaining)
	if count == 0 {
		return nil
	}
	out := make([]Outbound, 0, 2*count)
	for _, m := range remaining {
		out = append(out, Outbound{
			Target:  m.ID,
			Event:   EventUserLeft,
			Payload: UserLeftPayload{Username: leaver.Username, UserID: leaver.ID, UserCount: count},
		})
	}
	for _, m := range remaining {
		out = append(out, Outbound{Target: m.ID, Event: EventUserCount, Payload: UserCountPayload{Count: count}})
	}
	return out
}

// Refreshed 用于同一房间内的重新加入：成员数不变，只给 joiner 同步 user-count 和 users-list。
func (PresenceNotifier) Refreshed(members []domain.Presence, joiner domain.Presence) []Outbound {
	list := make(UsersListPayload, len(members))
	copy(list, members)
	return []Outbound{
		{Target: joiner.ID, Event: EventUserCount, Payload: UserCountPayload{Count: len(members)}},
		{Target: joiner.ID, Event: EventUsersList, Payload: list},
	}
}

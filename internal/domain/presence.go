package domain

// Presence 是成员在房间内的展示信息，加入时生成，之后不再变化。
type Presence struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

package bot

// NewAgent builds a racing agent from a bot identity. The identity's
// difficulty decides the speed bonus over the shared base speed.
func NewAgent(identity BotIdentity, baseSpeed, offsetStep float64) *Agent {
	return &Agent{
		ID:          identity.UserID,
		Name:        identity.DisplayName,
		BaseSpeed:   baseSpeed,
		SpeedOffset: SpeedOffset(identity.Difficulty, offsetStep),
	}
}

// NewAgentForSeat builds an agent straight from the identity pool by
// grid slot, for lobbies filled faster than identities can be looked up.
func NewAgentForSeat(seat int, baseSpeed, offsetStep float64) *Agent {
	return NewAgent(GetBotIdentity(seat), baseSpeed, offsetStep)
}

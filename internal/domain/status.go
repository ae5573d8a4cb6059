package domain

import "fmt"

// BotStatus 引擎生命周期状态（控制面视角）
type BotStatus string

const (
	BotStatusIdle     BotStatus = "idle"
	BotStatusStarting BotStatus = "starting"
	BotStatusRunning  BotStatus = "running"
	BotStatusStopping BotStatus = "stopping"
)

// IsValid 验证状态是否为已知值
func (s BotStatus) IsValid() bool {
	switch s {
	case BotStatusIdle, BotStatusStarting, BotStatusRunning, BotStatusStopping:
		return true
	}
	return false
}

// IsTransitional 是否为过渡态（Starting/Stopping）
func (s BotStatus) IsTransitional() bool {
	return s == BotStatusStarting || s == BotStatusStopping
}

func (s BotStatus) String() string { return string(s) }

// LifecycleCommand 运维人员发出的生命周期命令（无 payload）
type LifecycleCommand string

const (
	CommandStart   LifecycleCommand = "start"
	CommandStop    LifecycleCommand = "stop"
	CommandRestart LifecycleCommand = "restart"
)

// ParseLifecycleCommand 解析命令字符串
func ParseLifecycleCommand(s string) (LifecycleCommand, error) {
	switch c := LifecycleCommand(s); c {
	case CommandStart, CommandStop, CommandRestart:
		return c, nil
	}
	return "", fmt.Errorf("unknown lifecycle command %q", s)
}

func (c LifecycleCommand) String() string { return string(c) }

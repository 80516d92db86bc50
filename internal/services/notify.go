package services

// NotifyLevel 通知级别（对应界面上的提示条颜色）
type NotifyLevel string

const (
	NotifySuccess NotifyLevel = "success"
	NotifyDanger  NotifyLevel = "danger"
	NotifyWarning NotifyLevel = "warning"
	NotifyInfo    NotifyLevel = "info"
)

// Notifier 通知接收方（界面的提示条区域）
type Notifier interface {
	Notify(level NotifyLevel, message string)
}

// NotifierFunc 函数式 Notifier 适配器
type NotifierFunc func(level NotifyLevel, message string)

// Notify 实现 Notifier 接口
func (f NotifierFunc) Notify(level NotifyLevel, message string) {
	f(level, message)
}

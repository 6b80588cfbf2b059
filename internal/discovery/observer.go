package discovery

// Observer 记录引擎内部操作结果（对接指标）
type Observer interface {
	Record(operation, status string)
}

type ObserverFunc func(operation, status string)

func (f ObserverFunc) Record(operation, status string) {
	if f != nil {
		f(operation, status)
	}
}

func NopObserver() Observer {
	return ObserverFunc(func(string, string) {})
}

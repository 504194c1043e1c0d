package models

// Narrative — текст повествования узла. Либо статичная строка, либо функция
// от сессии («вычисляемый текст», например со случайным числом для колорита).
// Движок кеширует результат вычисления на узел/сессию, поэтому сама функция
// вызывается не чаще одного раза за посещение узла.
type Narrative struct {
	text string
	fn   func(s *Session) string
}

// StaticText создает повествование из статичной строки.
func StaticText(text string) Narrative {
	return Narrative{text: text}
}

// ComputedText создает вычисляемое повествование.
func ComputedText(fn func(s *Session) string) Narrative {
	return Narrative{fn: fn}
}

// IsComputed сообщает, требует ли значение вычисления.
func (n Narrative) IsComputed() bool {
	return n.fn != nil
}

// Render возвращает текст повествования. Для вычисляемых значений вызывает
// функцию напрямую, без кеша — кеширование по узлам делает движок.
func (n Narrative) Render(s *Session) string {
	if n.fn != nil {
		return n.fn(s)
	}
	return n.text
}

// CoinsValue — денежное значение терминального узла: литерал или функция
// без аргументов («вычисляемая награда»).
type CoinsValue struct {
	amount int
	fn     func() int
}

// Coins создает фиксированное денежное значение.
func Coins(amount int) CoinsValue {
	return CoinsValue{amount: amount}
}

// ComputedCoins создает вычисляемое денежное значение.
func ComputedCoins(fn func() int) CoinsValue {
	return CoinsValue{fn: fn}
}

// IsComputed сообщает, требует ли значение вычисления.
func (v CoinsValue) IsComputed() bool {
	return v.fn != nil
}

// Resolve возвращает число монет. Вычисляемые значения оцениваются при каждом
// вызове, поэтому движок вызывает Resolve ровно один раз на посещение узла.
func (v CoinsValue) Resolve() int {
	if v.fn != nil {
		return v.fn()
	}
	return v.amount
}

package domain

var Tables = []interface{}{
	&LinkAttempt{},
}

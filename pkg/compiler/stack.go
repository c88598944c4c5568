package compiler

// operandStack carries the pending statement operand from the point it is
// named to the point the statement closes.
type operandStack struct {
	items []string
}

func (s *operandStack) push(name string) {
	s.items = append(s.items, name)
}

func (s *operandStack) pop() (string, error) {
	if len(s.items) == 0 {
		return "", newError(CompilerError, "operand stack underflow")
	}
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return top, nil
}

func (s *operandStack) depth() int {
	return len(s.items)
}

package kernels

// AperiodicTemplates returns every m-bit template that cannot overlap a
// shifted copy of itself, in ascending binary order. Each call builds a
// fresh list owned by the caller.
func AperiodicTemplates(m int) [][]uint8 {
	var out [][]uint8
	for v := 0; v < 1<<uint(m); v++ {
		t := make([]uint8, m)
		for i := 0; i < m; i++ {
			t[i] = uint8(v>>uint(m-1-i)) & 1
		}
		if aperiodic(t) {
			out = append(out, t)
		}
	}
	return out
}

// aperiodic reports whether no proper suffix of t equals the prefix of
// the same length.
func aperiodic(t []uint8) bool {
	m := len(t)
	for k := 1; k < m; k++ {
		same := true
		for i := 0; i < m-k; i++ {
			if t[k+i] != t[i] {
				same = false
				break
			}
		}
		if same {
			return false
		}
	}
	return true
}

// parseTemplate converts a '0'/'1' string of length m.
func parseTemplate(s string, m int) ([]uint8, bool) {
	if len(s) != m {
		return nil, false
	}
	t := make([]uint8, m)
	for i := 0; i < m; i++ {
		switch s[i] {
		case '0':
		case '1':
			t[i] = 1
		default:
			return nil, false
		}
	}
	return t, true
}

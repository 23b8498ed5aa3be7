package nimpeller

// Matrix is a column-major 4x4 transform with the layout of ImpellerMatrix.
type Matrix struct {
	M [16]float32
}

func IdentityMatrix() Matrix {
	return Matrix{M: [16]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
}

func TranslationMatrix(x, y, z float32) Matrix {
	m := IdentityMatrix()
	m.M[12], m.M[13], m.M[14] = x, y, z
	return m
}

func ScaleMatrix(x, y, z float32) Matrix {
	m := IdentityMatrix()
	m.M[0], m.M[5], m.M[10] = x, y, z
	return m
}

// Multiply returns m * o, applying o first.
func (m Matrix) Multiply(o Matrix) Matrix {
	var r Matrix
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m.M[k*4+row] * o.M[col*4+k]
			}
			r.M[col*4+row] = sum
		}
	}
	return r
}

// Transform applies m to the point (x, y, 0, 1).
func (m Matrix) Transform(x, y float32) (float32, float32) {
	w := m.M[3]*x + m.M[7]*y + m.M[15]
	tx := m.M[0]*x + m.M[4]*y + m.M[12]
	ty := m.M[1]*x + m.M[5]*y + m.M[13]
	if w != 0 && w != 1 {
		tx, ty = tx/w, ty/w
	}
	return tx, ty
}

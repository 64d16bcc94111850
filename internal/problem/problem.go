// Package problem declares the symbolic initial-value problem that is
// handed to the spectral solver backend: state variables, parameters,
// algebraic substitutions, equations, and boundary conditions. The
// expression strings are opaque here; parsing and discretization belong
// to the backend.
package problem

// Parameter is a named scalar, or a spatially uniform field when Field is
// set. Forcing parameters that the bootstrap controller rescales in place
// (Ra, Q) must be fields so the solver need not be rebuilt.
type Parameter struct {
	Name  string
	Value float64
	Field bool
}

type Substitution struct {
	Name string
	Expr string
}

// Equation is one PDE row. Condition, when non-empty, restricts the row
// to Fourier modes satisfying it ("nx == 0" family).
type Equation struct {
	Expr      string
	Condition string
}

type BC struct {
	Expr      string
	Condition string
}

type Problem struct {
	Variables     []string
	Parameters    []Parameter
	Substitutions []Substitution
	Equations     []Equation
	BCs           []BC
	NCCCutoff     float64
}

func (p *Problem) AddParameter(name string, value float64, field bool) {
	p.Parameters = append(p.Parameters, Parameter{Name: name, Value: value, Field: field})
}

func (p *Problem) AddSubstitution(name, expr string) {
	p.Substitutions = append(p.Substitutions, Substitution{Name: name, Expr: expr})
}

func (p *Problem) AddEquation(expr string) {
	p.Equations = append(p.Equations, Equation{Expr: expr})
}

func (p *Problem) AddModalEquation(expr, condition string) {
	p.Equations = append(p.Equations, Equation{Expr: expr, Condition: condition})
}

func (p *Problem) AddBC(expr string) {
	p.BCs = append(p.BCs, BC{Expr: expr})
}

func (p *Problem) AddModalBC(expr, condition string) {
	p.BCs = append(p.BCs, BC{Expr: expr, Condition: condition})
}

func (p *Problem) HasVariable(name string) bool {
	for _, v := range p.Variables {
		if v == name {
			return true
		}
	}
	return false
}

func (p *Problem) ParameterValue(name string) (float64, bool) {
	for _, par := range p.Parameters {
		if par.Name == name {
			return par.Value, true
		}
	}
	return 0, false
}

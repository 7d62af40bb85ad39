package doctemplar

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Формулы вычисляемых колонок: только числа, идентификаторы из строки,
// унарные +/-, четыре бинарных оператора и скобки. Текст разбирается
// парсером expr-lang один раз, а вычисляется собственным обходом дерева,
// так что никакой другой узел (вызов, доступ к полю, строка) не исполняется.

// Formula — разобранная формула, пригодная для многократного вычисления.
type Formula struct {
	src  string
	root ast.Node
	// perr — ошибка разбора; проявляется при вычислении как сбой (→ 0).
	perr error
}

// Row — строка таблицы в виде ключ → значение.
type Row map[string]interface{}

var errFormulaRuntime = errors.New("formula runtime failure")

// CompileFormula проверяет набор символов и разбирает формулу.
// Ошибка возвращается только для запрещённых символов (ErrInvalidExpression).
func CompileFormula(src string) (*Formula, error) {
	for i, ch := range src {
		if !allowedFormulaRune(ch) {
			return nil, fmt.Errorf("%w: символ %q в позиции %d", ErrInvalidExpression, ch, i)
		}
	}
	f := &Formula{src: src}
	if strings.TrimSpace(src) == "" {
		f.perr = fmt.Errorf("%w: пустая формула", errFormulaRuntime)
		return f, nil
	}
	tree, err := parser.Parse(src)
	if err != nil {
		f.perr = fmt.Errorf("%w: %v", errFormulaRuntime, err)
		return f, nil
	}
	f.root = tree.Node
	return f, nil
}

func allowedFormulaRune(ch rune) bool {
	switch {
	case ch >= '0' && ch <= '9':
		return true
	case ch == '+' || ch == '-' || ch == '*' || ch == '/' || ch == '(' || ch == ')' || ch == '.' || ch == ',':
		return true
	case ch == '_' || unicode.IsLetter(ch):
		return true
	case unicode.IsSpace(ch):
		return true
	}
	return false
}

// String возвращает исходный текст формулы.
func (f *Formula) String() string { return f.src }

// Evaluate вычисляет формулу и сообщает о сбое выполнения.
func (f *Formula) Evaluate(scope map[string]interface{}) (float64, error) {
	if f.perr != nil {
		return 0, f.perr
	}
	v, err := evalNode(f.root, scope)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: нечисловой результат %v", errFormulaRuntime, v)
	}
	return v, nil
}

// Eval вычисляет формулу; любой сбой выполнения даёт 0.
func (f *Formula) Eval(scope map[string]interface{}) float64 {
	v, _ := f.Evaluate(scope)
	return v
}

// EvalExpr разбирает и вычисляет формулу за один вызов.
func EvalExpr(src string, scope map[string]interface{}) (float64, error) {
	f, err := CompileFormula(src)
	if err != nil {
		return 0, err
	}
	return f.Eval(scope), nil
}

func evalNode(n ast.Node, scope map[string]interface{}) (float64, error) {
	switch nn := n.(type) {
	case *ast.IntegerNode:
		return float64(nn.Value), nil
	case *ast.FloatNode:
		return nn.Value, nil
	case *ast.IdentifierNode:
		v, ok := scope[nn.Value]
		if !ok {
			return 0, fmt.Errorf("%w: неизвестный идентификатор %q", errFormulaRuntime, nn.Value)
		}
		return toNumber(v)
	case *ast.UnaryNode:
		v, err := evalNode(nn.Node, scope)
		if err != nil {
			return 0, err
		}
		switch nn.Operator {
		case "-":
			return -v, nil
		case "+":
			return v, nil
		}
		return 0, fmt.Errorf("%w: оператор %q", errFormulaRuntime, nn.Operator)
	case *ast.BinaryNode:
		l, err := evalNode(nn.Left, scope)
		if err != nil {
			return 0, err
		}
		r, err := evalNode(nn.Right, scope)
		if err != nil {
			return 0, err
		}
		switch nn.Operator {
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "/":
			return l / r, nil
		}
		return 0, fmt.Errorf("%w: оператор %q", errFormulaRuntime, nn.Operator)
	default:
		return 0, fmt.Errorf("%w: недопустимый узел %T", errFormulaRuntime, n)
	}
}

// toNumber приводит значение ячейки к числу: пустое значение — 0,
// строки разбираются с удалением разделителей групп.
func toNumber(v interface{}) (float64, error) {
	switch vv := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return vv, nil
	case float32:
		return float64(vv), nil
	case int:
		return float64(vv), nil
	case int64:
		return float64(vv), nil
	case bool:
		if vv {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(vv), ",", "")
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: не число %q", errFormulaRuntime, vv)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: значение типа %T", errFormulaRuntime, v)
	}
}

// ComputeRow возвращает новую строку, где колонки с формулой заменены
// результатом вычисления по исходной строке. Вход не изменяется.
func ComputeRow(row Row, cols []Column) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	scope := map[string]interface{}(row)
	for _, col := range cols {
		if col.Formula == "" {
			continue
		}
		f, err := CompileFormula(col.Formula)
		if err != nil {
			out[col.Key] = 0.0
			continue
		}
		out[col.Key] = f.Eval(scope)
	}
	return out
}

// ComputeRows возвращает копию таблицы, где ячейки вычисляемых колонок
// заполнены результатами формул. Имена в формулах — ключи Columns.
func (t *TableBlock) ComputeRows() *TableBlock {
	return t.computeRows(nil)
}

func (t *TableBlock) computeRows(onFail func(row int, col Column, err error)) *TableBlock {
	if len(t.Columns) == 0 {
		return t
	}
	formulas := make([]*Formula, len(t.Columns))
	hasFormula := false
	for i, col := range t.Columns {
		if col.Formula == "" {
			continue
		}
		f, err := CompileFormula(col.Formula)
		if err != nil {
			if onFail != nil {
				onFail(-1, col, err)
			}
			continue
		}
		formulas[i] = f
		hasFormula = true
	}
	if !hasFormula {
		return t
	}
	nb := t.cloneTable()
	for r, cells := range nb.Rows {
		scope := make(map[string]interface{}, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(cells) && col.Key != "" {
				scope[col.Key] = cells[i]
			}
		}
		for i, f := range formulas {
			if f == nil || i >= len(cells) || nb.Covered(r, i) {
				continue
			}
			v, err := f.Evaluate(scope)
			if err != nil && onFail != nil {
				onFail(r, t.Columns[i], err)
			}
			cells[i] = toString(v)
		}
	}
	return nb
}

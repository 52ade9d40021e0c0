package rule

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"atlas/internal/service/inventory/domain"
)

// CELAlertEngine 是 port.AlertRuleEngine 的 CEL 实现。
// 告警规则是一条来自配置的 CEL 布尔表达式，例如
// "available <= threshold" 或 "available <= threshold && reserved > 0"，
// 运维可以在不改代码的情况下调整告警口径。
type CELAlertEngine struct {
	program cel.Program
}

// NewCELAlertEngine 编译表达式。语法错误在启动时就暴露出来。
func NewCELAlertEngine(expression string) (*CELAlertEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("product_id", cel.StringType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("reserved", cel.IntType),
		cel.Variable("available", cel.IntType),
		cel.Variable("threshold", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel environment")
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "compile alert rule %q", expression)
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.Errorf("alert rule %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build cel program")
	}
	return &CELAlertEngine{program: program}, nil
}

// ShouldAlert 用一条台账事实评估规则。
func (e *CELAlertEngine) ShouldAlert(fact domain.StockAlertFact) (bool, error) {
	out, _, err := e.program.Eval(map[string]interface{}{
		"product_id": fact.ProductID,
		"quantity":   fact.Quantity,
		"reserved":   fact.Reserved,
		"available":  fact.Available,
		"threshold":  fact.Threshold,
	})
	if err != nil {
		return false, errors.Wrap(err, "evaluate alert rule")
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("alert rule returned %T, want bool", out.Value())
	}
	return result, nil
}

// internal/service/seckill/infrastructure/adapter/eligibility_cel.go
package adapter

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"flashsale/internal/service/seckill/domain"
)

// CelEligibilityEngine 是 port.EligibilityEngine 的 CEL 实现。
// 它把券上挂载的资格规则（如 "stock > 10 && now < end"）编译为
// CEL 程序并缓存，后续评估只需执行已编译的程序。
type CelEligibilityEngine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

func NewCelEligibilityEngine() (*CelEligibilityEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.IntType),
		cel.Variable("stock", cel.IntType),
		cel.Variable("now", cel.TimestampType),
		cel.Variable("begin", cel.TimestampType),
		cel.Variable("end", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 CEL 环境失败: %w", err)
	}
	return &CelEligibilityEngine{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Evaluate 评估规则表达式。规则为空视为无条件放行。
func (e *CelEligibilityEngine) Evaluate(rule string, fact domain.EligibilityFact) (bool, error) {
	if rule == "" {
		return true, nil
	}

	prg, err := e.program(rule)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"user_id": fact.UserID,
		"stock":   fact.Stock,
		"now":     fact.Now,
		"begin":   fact.Begin,
		"end":     fact.End,
	})
	if err != nil {
		return false, fmt.Errorf("规则评估失败: %w", err)
	}

	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("规则必须返回布尔值, 实际得到 %T", out.Value())
	}
	return ok, nil
}

func (e *CelEligibilityEngine) program(rule string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.cache[rule]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("规则编译失败: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("规则构建失败: %w", err)
	}

	e.mu.Lock()
	e.cache[rule] = prg
	e.mu.Unlock()
	return prg, nil
}

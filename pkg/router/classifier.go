package router

import (
	"context"
	"fmt"
	"log"

	"github.com/trinity-stack/trinity/pkg/models"
)

const rubricPrompt = `你是 AI 路由分類員。請分析用戶輸入，嚴格判斷是否需要「博士級」模型處理。

【HARD 標準】(必須符合，否則不選):
1. 深度邏輯推理 (Deep Logic / Paradox)
2. 複雜架構設計 (Complex Architecture)
3. 深度數學/物理推導 (Math / Physics)
4. 哲學/倫理深度思考 (Philosophy)
5. 創意寫作 (Novel / Script)

【MEDIUM 標準】:
- Coding, Translation, Explanation, General Q&A

【EASY 標準】:
- Greeting, Chit-chat, Simple Fact

User: "%s"
Output ONLY: EASY, MEDIUM, or HARD.`

// Classifier grades a query with a fast, cheap model call. It never
// returns an error: any failure defaults to the balanced tier, which can
// handle anything at acceptable cost.
type Classifier struct {
	Model models.Agent
}

func (c *Classifier) Classify(ctx context.Context, query string) Difficulty {
	reply, err := c.Model.Generate(ctx, fmt.Sprintf(rubricPrompt, query))
	if err != nil {
		log.Printf("[ROUTER] classification failed, defaulting to MEDIUM: %v", err)
		return Medium
	}
	return ParseDifficulty(reply)
}

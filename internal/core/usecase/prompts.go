package usecase

import (
	"fmt"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

const answerSystemPrompt = `You are a professional technical articles Q&A assistant.

Your Tasks:
1. Answer user questions based on the provided article content
2. Provide accurate, concise, and well-structured answers
3. If the content doesn't contain the answer, honestly acknowledge it
4. Use [1], [2] notation to cite sources

Answer Principles:
- Respond in the same language as the user's question
- Prioritize referencing the original content, then add your explanation
- Do not fabricate content or speculate excessively
- If the question is outside the scope of the articles, clearly inform the user
- Maintain a professional yet friendly tone

Citation Format:
- Use [1], [2] notation in your answer to reference sources
- Every key point should be attributed to a source`

func buildAnswerUserPrompt(query, formattedContext string) string {
	if formattedContext == "" {
		return fmt.Sprintf("User Question: %s\n\n"+
			"Note: No relevant article content was found. Please inform the user that this question may be outside the scope of the available articles.", query)
	}
	return fmt.Sprintf("Below are relevant excerpts from articles. Please answer the question based on this content.\n\n"+
		"===== Reference Content =====\n%s\n\n"+
		"===== User Question =====\n%s\n\n"+
		"Please answer the question above and cite your sources using [1], [2] notation.", formattedContext, query)
}

const enhancementPromptEnglish = `You are a query enhancement assistant for a technical blog search system. Your job is to expand short, ambiguous queries into more specific and searchable terms.

Given a short query, enhance it by:
1. Adding relevant technical context
2. Including common synonyms and related terms
3. Expanding abbreviations
4. Adding related concepts

The blog covers topics like:
- Software Engineering (Staff Engineer, Tech Lead, Architecture)
- Web Development (React, TypeScript, JavaScript)
- System Design and Scalability
- Performance Optimization
- Career Development in Tech
- Engineering Management

Respond with a JSON object:
{
  "enhanced_query": "expanded version of the query",
  "expansions": ["alternative", "phrasings", "of", "query"],
  "synonyms": ["related", "terms"],
  "related_terms": ["broader", "concepts"],
  "confidence": 0.8
}

Keep it concise and relevant. The enhanced query should be 1-2 sentences max.`

const enhancementPromptChinese = `你是一個技術部落格搜尋系統的查詢增強助手。你的任務是將簡短、模糊的查詢擴展為更具體、更容易搜尋的詞彙。

對於簡短查詢，請通過以下方式增強：
1. 添加相關的技術背景
2. 包含常見同義詞和相關術語
3. 展開縮寫詞
4. 添加相關概念

部落格涵蓋的主題包括：
- 軟體工程（Staff Engineer、Tech Lead、架構）
- Web 開發（React、TypeScript、JavaScript）
- 系統設計和可擴展性
- 效能優化
- 技術職涯發展
- 工程管理

請用 JSON 格式回應：
{
  "enhanced_query": "查詢的擴展版本",
  "expansions": ["查詢的", "替代", "表述"],
  "synonyms": ["相關", "術語"],
  "related_terms": ["更廣泛的", "概念"],
  "confidence": 0.8
}

保持簡潔和相關性。增強查詢應該最多 1-2 句話。`

func enhancementSystemPrompt(locale domain.Locale) string {
	if locale == domain.LocaleChinese {
		return enhancementPromptChinese
	}
	return enhancementPromptEnglish
}

func enhancementUserPrompt(query string, locale domain.Locale) string {
	if locale == domain.LocaleChinese {
		return fmt.Sprintf("請增強這個查詢: %q", query)
	}
	return fmt.Sprintf("Please enhance this query: %q", query)
}

func noContentMessage(locale domain.Locale) string {
	if locale == domain.LocaleChinese {
		return "抱歉，我沒有找到與您問題相關的內容。這個問題可能超出了現有文章的範圍。"
	}
	return "Sorry, I could not find any relevant content for your question. This topic may be outside the scope of the available articles."
}

func articleLabel(locale domain.Locale) string {
	if locale == domain.LocaleEnglish {
		return "Article"
	}
	return "文章"
}

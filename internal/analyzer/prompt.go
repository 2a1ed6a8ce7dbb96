package analyzer

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

// Сколько символов тела записи уходит в модель
const maxBodyRunes = 500

// Контекст бизнеса, для которого отбираются тренды. Идет системной инструкцией
const BusinessContext = `당신은 부성티케이의 AI 트렌드 분석 전문가입니다.

부성티케이 비즈니스 컨텍스트:
- B2B 업소용 주방설비 전문 회사 (수원 소재)
- 핵심 사업: 업소용 주방 설계, 시공, 유지보수
- 주요 고객: 삼성, 에버랜드 등 대기업 급식/외식 시설
- 100% 인바운드 마케팅으로 고객 유치
- 평균 수주액 4천만원, 연매출 7.2억
- 기술스택: React + Supabase + Vercel, Solapi 카카오톡, Claude API
- 운영 시스템: 견적헬퍼, 주문추적, 유지보수 대시보드
- 전략: AEO(AI Engine Optimization) / GEO(Generative Engine Optimization) 진행중

분석 기준:
1. 부성티케이의 디지털 전환과 AI 활용에 직접적으로 관련된 트렌드를 높은 관련도로 평가
2. B2B 마케팅, 고객 관리, 업무 자동화 관련 트렌드 중시
3. 실제 적용 가능한 구체적인 액션 아이템 도출
4. 한국 시장 맥락을 고려한 분석`

// Инструкция и схема ответа
const analysisPrompt = `아래 수집된 AI/기술 관련 콘텐츠를 분석하여 부성티케이에 유용한 트렌드를 추출해주세요.

반드시 아래 JSON 형식으로만 응답하세요 (다른 텍스트 없이):

{
  "trends": [
    {
      "title": "한국어 간결한 제목 (30자 이내)",
      "summary": "부성티케이 관점에서 왜 중요한지 2-3문장 요약",
      "category": "LLM|SEO|B2B|챗봇|개발|생산성|마케팅|기타 중 하나",
      "impact": "high|medium|low",
      "relevance_score": 0-100,
      "tags": ["관련", "태그"],
      "source_items": [원본 번호 배열],
      "actions": [
        {
          "text": "부성티케이가 실행할 수 있는 구체적 액션",
          "priority": "high|medium|low"
        }
      ]
    }
  ]
}

중요:
- 유사한 콘텐츠는 하나의 트렌드로 병합
- 부성티케이와 무관한 콘텐츠는 제외하거나 낮은 관련도 부여
- 최소 1개, 최대 10개 트렌드 추출
- 각 트렌드당 최소 1개 액션 아이템 포함`

// BuildPrompt перечисляет записи пачки с номерами от 1.
// По этим номерам модель ссылается на записи в source_items
func BuildPrompt(items []model.RawItem) string {
	blocks := lo.Map(items, func(item model.RawItem, i int) string {
		return fmt.Sprintf(
			"[%d] [%s] %s\n%s\n%s",
			i+1,
			lo.Ternary(item.SourceName != "", item.SourceName, "Unknown"),
			lo.Ternary(item.Title != "", item.Title, "No title"),
			truncateRunes(item.Content, maxBodyRunes),
			item.URL,
		)
	})

	var sb strings.Builder
	sb.WriteString(analysisPrompt)
	fmt.Fprintf(&sb, "\n\n--- 수집된 콘텐츠 (%d개) ---\n\n", len(items))
	sb.WriteString(strings.Join(blocks, "\n\n---\n\n"))

	return sb.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

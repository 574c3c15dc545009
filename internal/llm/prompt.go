package llm

import "fmt"

// TitlePrompt builds the title-rewrite instruction for one article.
func TitlePrompt(title string) string {
	return fmt.Sprintf("请将以下新闻标题改写为意思相同但表达不同的新标题，只返回改写后的标题，不要添加任何解释：\n%s", title)
}

// BodyPrompt builds the content-rewrite instruction for one article.
func BodyPrompt(body string) string {
	return fmt.Sprintf("请对以下文章内容进行改写，降低与原文的重复度，保持原意、段落结构和其中的标签，只返回改写后的内容，不要添加任何解释：\n%s", body)
}

package generation

import (
	"fmt"
	"strings"

	"github.com/buche/contentgen/internal/modules/snippets"
)

// maxPromptSnippets caps how many retrieved bodies make it into a
// prompt regardless of what retrieval returned.
const maxPromptSnippets = 3

// Prompt text is Chinese because the corpus and the generated content
// are Chinese. Models handle the instructions fine either way.

const characterPromptTemplate = `分析这段内容，提取其中的主要人物角色信息。对每个人物，提供以下信息：
- 姓名或称呼
- 与其他角色的关系（如：夫妻、恋人、朋友等）
- 外貌或性格特征（3-5个关键词）
- 在故事中的角色定位（如：主角、配角等）

内容：%s

请以JSON格式返回，格式如下：
[
  {
    "name": "角色名",
    "relationship": "关系描述",
    "attributes": ["特征1", "特征2", "特征3"],
    "role": "角色定位"
  }
]`

const summaryPromptTemplate = `请对以下内容进行总结，包含以下关键信息：
1. 主要场景和环境设定
2. 故事背景和时间点
3. 主要情节发展
4. 人物关系和互动
5. 情感氛围和基调
6. 叙述风格特点

要求：
- 总结长度控制在100-200字
- 保持客观描述
- 突出关键元素以便后续内容生成参考

内容：%s

请提供简洁的总结：`

const tagPromptTemplate = `分析这段内容，提取3-6个最相关的中文标签（每个2-4个字），用于描述内容的主题、场景、情感和风格特点。

内容：%s

只返回标签名称，每行一个，不需要解释。`

const simpleGenerationPrompt = `你是一个专业的中文小说续写助手。根据提供的内容和相关片段，继续创作符合以下要求的内容：

**创作要求：**
1. **保持角色一致性** - 维持原文中的人物特征、性格和关系
2. **延续情节发展** - 自然地延续原文的故事情节和情感发展
3. **匹配写作风格** - 保持与原文相似的叙述风格、语言特点和文字风格
4. **深化情感描述** - 加强情感层面的描写，包括心理活动和感受
5. **丰富场景细节** - 包含恰当的环境氛围和感官描述

**参考内容分析：**
- 从相关片段中提取适合的情节元素、场景设置和互动方式
- 学习相关内容的叙述技巧和情感表达方式
- 保持与参考内容类似的节奏和表达风格

**输出要求：**
- 长度：300-800字
- 语言：流畅的中文
- 结构：完整的段落，有清晰的情节发展
- 内容：延续性强，与原文无缝衔接

**原始内容：**
{original_content}

**相关参考片段：**
{related_snippets}

**检测到的标签：**
{detected_tags}

请基于以上信息创作后续内容：`

func characterPrompt(content string) string {
	return fmt.Sprintf(characterPromptTemplate, truncateForPrompt(content, 1500))
}

func summaryPrompt(content string) string {
	return fmt.Sprintf(summaryPromptTemplate, truncateForPrompt(content, 2000))
}

func tagPrompt(content string) string {
	return fmt.Sprintf(tagPromptTemplate, truncateForPrompt(content, 1500))
}

// buildSimplePrompt fills the continuation template. Snippet bodies
// are capped to keep the prompt inside the model's context window.
func buildSimplePrompt(content string, related []snippets.Related, tags []string) string {
	parts := make([]string, 0, maxPromptSnippets)
	for i, s := range related {
		if i >= maxPromptSnippets {
			break
		}
		body := truncateForPrompt(s.Content, 300)
		parts = append(parts, fmt.Sprintf("[片段%d] 《%s》作者：%s\n%s", i+1, s.Title, s.Author, body))
	}
	snippetsText := strings.Join(parts, "\n\n")
	if snippetsText == "" {
		snippetsText = "(无相关片段)"
	}
	tagsText := strings.Join(tags, "、")
	if tagsText == "" {
		tagsText = "(无检测到的标签)"
	}

	r := strings.NewReplacer(
		"{original_content}", content,
		"{related_snippets}", snippetsText,
		"{detected_tags}", tagsText,
	)
	return r.Replace(simpleGenerationPrompt)
}

// buildEnrichedPrompt composes the continuation prompt from the full
// analysis output: characters, summary and untruncated snippet bodies.
func buildEnrichedPrompt(characters []CharacterInfo, summary string, related []snippets.Related) string {
	charactersText := "(未检测到明确角色信息)"
	if len(characters) > 0 {
		lines := make([]string, 0, len(characters))
		for _, c := range characters {
			relationship := c.Relationship
			if relationship == "" {
				relationship = "未知关系"
			}
			role := c.Role
			if role == "" {
				role = "未知"
			}
			lines = append(lines, fmt.Sprintf("%s：%s，特征：%s，角色：%s",
				c.Name, relationship, strings.Join(c.Attributes, "、"), role))
		}
		charactersText = strings.Join(lines, "\n")
	}

	parts := make([]string, 0, maxPromptSnippets)
	for i, s := range related {
		if i >= maxPromptSnippets {
			break
		}
		parts = append(parts, fmt.Sprintf("[参考片段%d] 《%s》作者：%s\n标签：%s\n内容：%s",
			i+1, s.Title, s.Author, strings.Join(s.Tags, "、"), s.Content))
	}
	snippetsText := strings.Join(parts, "\n\n")
	if snippetsText == "" {
		snippetsText = "(无相关片段)"
	}

	var b strings.Builder
	b.WriteString("你是中文小说续写助手。参考以下情节片段创作内容，忽略其他无关因素。\n\n")
	b.WriteString("**情节参考片段：**\n")
	b.WriteString(snippetsText)
	b.WriteString("\n\n**角色：** ")
	b.WriteString(charactersText)
	b.WriteString("\n**背景：** ")
	b.WriteString(summary)
	b.WriteString("\n\n**任务：直接参考片段中的情节内容进行续写**\n")
	b.WriteString("- 使用片段中的场景设置、人物互动和对话风格\n")
	b.WriteString("- 简单过渡后重点展开核心情节\n")
	b.WriteString("- 忽略与主线无关的日常内容\n\n")
	b.WriteString("**要求：**\n")
	b.WriteString("- 400-800字\n")
	b.WriteString("- 包含具体的情节发展和细节描写\n")
	b.WriteString("- 参考片段的叙述节奏\n\n")
	b.WriteString("请创作后续内容：")
	return b.String()
}

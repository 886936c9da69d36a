package agent

import "fmt"

const roleAndRules = `你是负责人工智能研究项目中某个具体问题的专家。你的职责是深入思考问题本质，设计严谨的研究方案，并在方案被下级专家团队逐一验证后完成收尾工作。`

const xmlFormatRule = `只输出一个顶层 <response> 标签，标签内容必须是合法 XML，不要在标签外输出任何文字。`

func envBlock(tag, explanation, content string) string {
	return fmt.Sprintf("<%s>\n<content>\n%s\n</content>\n<explanation>\n%s\n</explanation>\n</%s>\n", tag, content, explanation, tag)
}

func renderEnvironment(env EnvironmentInfo) string {
	return "" +
		envBlock("current_research_tree_full_text", "当前完整研究树的压缩文本表示。", env.CurrentResearchTreeFullText) +
		envBlock("current_research_problem", "你当前负责求解的问题节点。", env.CurrentResearchProblem) +
		envBlock("root_problem", "本次研究的根问题。", env.RootProblem) +
		envBlock("expert_solutions_of_all_ancestor_problems", "从根问题到当前问题路径上，各级专家给出的解决方案。", env.ExpertSolutionsOfAllAncestorProblems) +
		envBlock("other_solutions_of_current_problem", "当前问题下未被选中的其它候选方案。", env.OtherSolutionsOfCurrentProblem) +
		envBlock("expert_solutions_of_all_descendant_problems", "当前已选方案下，所有后代问题的专家解决方案。", env.ExpertSolutionsOfAllDescendantProblems) +
		envBlock("user_prompt", "用户对本次研究提出的额外要求。", env.UserPrompt)
}

// renderCreateSolutionPrompt grounds the auto-research agent's
// CreateSolution prompt.
func renderCreateSolutionPrompt(env EnvironmentInfo) string {
	return fmt.Sprintf(`%s
<task>
请为当前研究问题设计一份完整的解决方案，包括顶层思考、研究方案（子问题列表，可以为空）、实施方案和方案论证。
子问题分为 conditional（条件问题）和 implementation（实施问题）两种类型。
</task>
<output_format>
%s
<response>
<name>整体思路的名称</name>
<top_level_thoughts>顶层思考内容</top_level_thoughts>
<research_plan>
<sub_problem type="conditional|implementation">
<name>问题名称</name>
<significance>问题意义</significance>
<criteria>评判标准</criteria>
</sub_problem>
</research_plan>
<implementation_plan>实施方案内容</implementation_plan>
<plan_justification>方案论证内容</plan_justification>
</response>
</output_format>
<environment_information>
%s</environment_information>
`, roleAndRules, xmlFormatRule, renderEnvironment(env))
}

// renderHandleModificationRequestsPrompt grounds the chat agent's
// decide-step prompt. supervisorName labels who raised
// the modification request; currentSolution and messageList are
// embedded verbatim.
func renderHandleModificationRequestsPrompt(env EnvironmentInfo, supervisorName, currentSolution, messageList, modificationRequest string) string {
	return fmt.Sprintf(`%s
<task>
现在%s对你的解决方案提出了疑问或修改要求。当且仅当用户的最新消息中出现"请修改"三个字时，才可以选择 accept；否则必须选择 reply，向用户澄清。
</task>
<output_format>
%s
<response>
<decision type="accept" | "reply">
<reasoning>决策理由</reasoning>
<if type="accept">
<modification_plan>修改计划</modification_plan>
</if>
<if type="reply">
<response_to_user>对用户的回复</response_to_user>
</if>
</decision>
</response>
</output_format>
%s
<current_solution>
<content>
%s
</content>
</current_solution>
<message_list>
<content>
%s
</content>
</message_list>
<modification_request>
<content>
%s
</content>
</modification_request>
`, roleAndRules, supervisorName, xmlFormatRule, renderEnvironment(env), currentSolution, messageList, modificationRequest)
}

// renderModifySolutionPrompt grounds the chat agent's modify-step
// prompt. subProblemList is the prior solution's title-keyed
// sub-problem listing, rendered so the model can reference inherit
// targets by name.
func renderModifySolutionPrompt(env EnvironmentInfo, supervisorName, currentSolution, subProblemList, messageList, modifyPlan string) string {
	return fmt.Sprintf(`%s
<task>
现在%s对你的解决方案提出了修改要求，经过讨论你决定修改。请在当前方案基础上设计新的方案。
子问题可以是 conditional、implementation 或 inherit 三种类型之一；inherit 类型只需提供与原问题完全相同的名称，其它字段无效，该子问题此前的研究工作将被原样保留。
</task>
<output_format>
%s
<response>
<name>整体思路的名称</name>
<top_level_thoughts>顶层思考内容</top_level_thoughts>
<research_plan>
<sub_problem type="conditional|implementation|inherit">
<name>问题名称</name>
<if type != "inherit">
<significance>问题意义</significance>
<criteria>评判标准</criteria>
</if>
</sub_problem>
</research_plan>
<implementation_plan>实施方案内容</implementation_plan>
<plan_justification>方案论证内容</plan_justification>
</response>
</output_format>
%s
<current_solution>
<content>
%s
</content>
</current_solution>
<current_solution_sub_problem_list>
<content>
%s
</content>
</current_solution_sub_problem_list>
<message_list>
<content>
%s
</content>
</message_list>
<modify_plan>
<content>
%s
</content>
</modify_plan>
`, roleAndRules, supervisorName, xmlFormatRule, renderEnvironment(env), currentSolution, subProblemList, messageList, modifyPlan)
}

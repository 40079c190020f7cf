package assist

import "github.com/haivivi/cookguide/pkg/dialogue"

const respondRules = `
Speak to a person with low vision who cannot see the screen: be brief and concrete, one or two
sentences, and describe things by touch, sound, smell and position rather than by color alone.
Cite the video segments your answer relies on by their index.`

var defaultStates = [dialogue.NumStates]StatePolicy{
	dialogue.StateComparing: {
		Instruction: `You watch the user cook through their camera. Compare the camera image with the
video knowledge, find the segment the user is working on and tell them whether they are on track.` + respondRules,
		MemoryWindow: 5,
		UseImage:     true,
	},
	dialogue.StateExplainingFood: {
		Instruction: `The user asks about the state of their food. Describe its doneness, texture and
amount as seen in the camera image and compare it with what the video shows at the same step.` + respondRules,
		MemoryWindow: 5,
		UseImage:     true,
	},
	dialogue.StateAnsweringQuestion: {
		Instruction: `Answer the user's question about the recipe using the video knowledge. If the
video does not cover it, say so and give common cooking advice.` + respondRules,
	},
	dialogue.StateFixingProblem: {
		Instruction: `The user has a problem with the current step, either reported by them or found
by the scene analysis in memory. Explain how to fix it, starting with the most urgent action.
Use the improvement instructions of the latest scene analysis when present.` + respondRules,
		MemoryWindow: 5,
		UseImage:     true,
	},
	dialogue.StateEnhancingResponse: {
		Instruction: `The user wants more detail on your previous answer. Add detail without
contradicting it.` + respondRules,
	},
	dialogue.StateHandlingDisagreement: {
		Instruction: `The user disagrees with your previous answer. Re-check it against the video
knowledge and the camera image, acknowledge what they said and ask exactly one clarifying
question.` + respondRules,
		UseImage: true,
	},
	dialogue.StateGuidingNextStep: {
		Instruction: `The user asks what to do next. Find the segment they are on from memory and the
camera image and describe the next procedure step.` + respondRules,
		MemoryWindow: 5,
		UseImage:     true,
	},
	dialogue.StateCorrectingOrder: {
		Instruction: `The scene analysis found the user skipped a step or did steps out of order.
Explain which step was missed and what to do about it now.` + respondRules,
		MemoryWindow: 5,
		UseImage:     true,
	},
	dialogue.StateAnnouncingProgress: {
		Instruction: `The user finished a step and moved on. Confirm their progress and announce the
procedure that comes next.` + respondRules,
		MemoryWindow: 3,
	},
}

const repeatInstruction = `The user asks you to repeat something you said. Pick the one earlier
interaction from the candidates that they most likely mean, by its index. When the request is
vague, pick the most recent one.`

const playbackInstruction = `The user wants to control the reference video. Decide whether to
pause, play or replay, and which segment to replay if they name one. Use -1 for the segment when
they do not.`

const sceneInstruction = `Analyze the camera image of the user's kitchen against the video
knowledge. Decide whether the image shows a valid cooking step, whether the step is done
correctly, whether the procedure order is right and whether the user has progressed to the next
procedure. Fill every analysis field with one or two sentences and give concrete improvement
instructions when something is wrong.`

package emulator

// Page scripts. Each is evaluated as an expression, so multi-statement
// bodies are wrapped in an immediately invoked function.

const readyStateJS = `(() => {
	const gameDiv = document.getElementById('game');
	if (!gameDiv) return 'NO_GAME_DIV';
	const canvas = gameDiv.querySelector('canvas');
	if (!canvas) return 'NO_CANVAS';
	if (canvas.width === 0 || canvas.height === 0) return 'CANVAS_NOT_READY';
	if (window.gameLoaded === true) return 'GAME_FULLY_LOADED';
	if (window.EJS && window.EJS.started === true) return 'EMULATOR_STARTED';
	if (canvas.width > 200 && canvas.height > 100) return 'CANVAS_READY_CHECKING_CONTENT';
	return 'CANVAS_TOO_SMALL';
})()`

const dismissNetplayJS = `(() => {
	let dismissed = false;
	const modals = document.querySelectorAll('[class*="modal"], [class*="popup"], [class*="dialog"], [class*="netplay"], [class*="multiplayer"]');
	modals.forEach(modal => {
		if (modal.style.display !== 'none' && modal.offsetParent !== null) {
			const closeBtn = modal.querySelector('[class*="close"], [class*="cancel"], [class*="dismiss"], button');
			if (closeBtn) { closeBtn.click(); } else { modal.style.display = 'none'; }
			dismissed = true;
		}
	});
	document.querySelectorAll('[id*="netplay"], [id*="multiplayer"]').forEach(elem => {
		if (elem.style.display !== 'none' && elem.offsetParent !== null) {
			elem.style.display = 'none';
			dismissed = true;
		}
	});
	return dismissed;
})()`

const activateJS = `(() => {
	const canvas = document.querySelector('#game canvas');
	if (!canvas) return 'NO_CANVAS_FOUND';
	canvas.focus();
	const rect = canvas.getBoundingClientRect();
	canvas.dispatchEvent(new MouseEvent('click', {
		view: window, bubbles: true, cancelable: true,
		clientX: rect.left + rect.width / 2,
		clientY: rect.top + rect.height / 2
	}));
	document.querySelectorAll('button, .play-button, .start-button').forEach(btn => {
		const label = btn.textContent.toLowerCase();
		if (label.includes('play') || label.includes('start')) btn.click();
	});
	if (window.EJS && typeof window.EJS.start === 'function') window.EJS.start();
	return 'INTERACTION_SENT';
})()`

const canvasRectJS = `(() => {
	const gameDiv = document.getElementById('game');
	if (!gameDiv) return { error: 'No game div found' };
	const canvas = gameDiv.querySelector('canvas');
	if (!canvas) return { error: 'No canvas found' };
	const rect = canvas.getBoundingClientRect();
	const scrollX = window.pageXOffset || document.documentElement.scrollLeft;
	const scrollY = window.pageYOffset || document.documentElement.scrollTop;
	return {
		success: true,
		x: Math.round(rect.left + scrollX),
		y: Math.round(rect.top + scrollY),
		width: Math.round(rect.width),
		height: Math.round(rect.height),
		devicePixelRatio: window.devicePixelRatio || 1
	};
})()`

// loadROMJS takes the JSON-quoted base64 cartridge and file name.
const loadROMJS = `((b64, name) => {
	try {
		const raw = atob(b64);
		const bytes = new Uint8Array(raw.length);
		for (let i = 0; i < raw.length; i++) bytes[i] = raw.charCodeAt(i);
		const file = new File([bytes], name, { type: 'application/octet-stream' });
		if (window.loadROM && typeof window.loadROM === 'function') {
			window.loadROM(file);
			return 'ROM_UPLOAD_SUCCESS';
		}
		return 'ERROR: loadROM function not found';
	} catch (error) {
		return 'ERROR: ' + error.message;
	}
})(%s, %s)`
